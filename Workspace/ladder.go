package Workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// Outcome is the tier of the ladder that produced a response.
type Outcome int

const (
	Success Outcome = iota
	Degraded
	Synthesized
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Degraded:
		return "degraded"
	case Synthesized:
		return "synthesized"
	default:
		return "unknown"
	}
}

// Rung is one strategy of a ladder.
type Rung struct {
	Name    string
	Outcome Outcome
	Fetch   func(ctx context.Context) (json.RawMessage, error)
}

// Ladder tries its rungs in order and returns the first that succeeds.
type Ladder []Rung

func (l Ladder) Run(ctx context.Context) (json.RawMessage, Outcome, error) {
	var errs []error
	for _, rung := range l {
		body, err := rung.Fetch(ctx)
		if err == nil {
			return body, rung.Outcome, nil
		}
		log.Printf("Workspace fallback %s failed: %v", rung.Name, err)
		errs = append(errs, fmt.Errorf("%s: %w", rung.Name, err))
	}
	return nil, Synthesized, errors.Join(errs...)
}

var emptyList = json.RawMessage("[]")

// Direct relays the upstream body for path as is.
func Direct(client *Client, path string) Rung {
	return Rung{
		Name:    "direct " + path,
		Outcome: Success,
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			body, err := client.Get(ctx, path)
			if err != nil {
				return nil, err
			}
			if !json.Valid(body) {
				return nil, &UpstreamError{Method: "GET", Path: path, Status: 200, Err: errors.New("response is not JSON")}
			}
			return json.RawMessage(body), nil
		},
	}
}

// EmptyList always yields [].
func EmptyList() Rung {
	return Rung{
		Name:    "empty list",
		Outcome: Synthesized,
		Fetch: func(context.Context) (json.RawMessage, error) {
			return emptyList, nil
		},
	}
}

// ListLadder is the policy for plain list reads: the upstream body, or [].
func ListLadder(client *Client, path string) Ladder {
	return Ladder{Direct(client, path), EmptyList()}
}

// FilteredByCategory lists every project of the workspace and keeps those
// whose categoryId matches, comparing both sides as strings.
func FilteredByCategory(client *Client, workspaceID, categoryID string) Rung {
	path := Path("workspaces", workspaceID, "projects")
	return Rung{
		Name:    "derived " + path,
		Outcome: Degraded,
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			body, err := client.Get(ctx, path)
			if err != nil {
				return nil, err
			}

			decoder := json.NewDecoder(bytes.NewReader(body))
			decoder.UseNumber()
			var projects []map[string]interface{}
			if err := decoder.Decode(&projects); err != nil {
				return nil, fmt.Errorf("decode project list: %w", err)
			}

			matched := make([]map[string]interface{}, 0, len(projects))
			for _, project := range projects {
				if v, ok := project["categoryId"]; ok && v != nil && fmt.Sprint(v) == categoryID {
					matched = append(matched, project)
				}
			}
			return json.Marshal(matched)
		},
	}
}

// PlaceholderProjects keeps the category screen populated when nothing
// upstream answered.
func PlaceholderProjects(categoryID string, now func() time.Time) Rung {
	return Rung{
		Name:    "placeholder projects",
		Outcome: Synthesized,
		Fetch: func(context.Context) (json.RawMessage, error) {
			base := now().UnixMilli()
			return json.Marshal([]map[string]interface{}{
				{
					"id":           base + 1,
					"name":         "Sample Project A",
					"customerName": "Test Customer",
					"status":       "in_progress",
					"priority":     "high",
					"categoryId":   categoryID,
				},
				{
					"id":           base + 2,
					"name":         "Sample Project B",
					"customerName": "Demo Client",
					"status":       "active",
					"priority":     "medium",
					"categoryId":   categoryID,
				},
			})
		},
	}
}

// CategoryProjectsLadder is direct, then derived, then synthesized.
func CategoryProjectsLadder(client *Client, workspaceID, categoryID string, now func() time.Time) Ladder {
	return Ladder{
		Direct(client, Path("workspaces", workspaceID, "categories", categoryID, "projects")),
		FilteredByCategory(client, workspaceID, categoryID),
		PlaceholderProjects(categoryID, now),
	}
}
