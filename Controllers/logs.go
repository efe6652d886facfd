package Controllers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"AviCRM/Models"
	"AviCRM/middleware"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

// RouteStats summarises the requests made to one method+path pair.
type RouteStats struct {
	Method      string  `json:"method"`
	Path        string  `json:"path"`
	Count       int     `json:"count"`
	AvgLatency  float64 `json:"avg_latency_ms"`
	MinLatency  float64 `json:"min_latency_ms"`
	MaxLatency  float64 `json:"max_latency_ms"`
	SuccessRate float64 `json:"success_rate"`
}

type LogsResponse struct {
	Logs       []middleware.LogData `json:"logs"`
	TotalLogs  int                  `json:"total_logs"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
	DateFrom   time.Time            `json:"date_from"`
	DateTo     time.Time            `json:"date_to"`
}

// LogController serves the request log written by middleware.RequestLogger.
type LogController struct {
	Path string
	now  func() time.Time
}

func NewLogController(path string) *LogController {
	return &LogController{Path: path, now: time.Now}
}

func invalidQuery(field, message string) error {
	return &Models.ValidationError{Fields: map[string]string{field: message}}
}

type logQuery struct {
	from, to time.Time
	path     string
	method   string
	status   int
	username string
}

// dateRange reads date_from/date_to. With neither set the range is today.
func (lc *LogController) dateRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	fromStr, toStr := c.Query("date_from"), c.Query("date_to")
	now := lc.now()
	if fromStr == "" && toStr == "" {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return start, start.Add(24*time.Hour - time.Nanosecond), nil
	}

	from := time.Unix(0, 0).UTC()
	to := now
	if fromStr != "" {
		parsed, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return from, to, invalidQuery("date_from", "date_from must use YYYY-MM-DD")
		}
		from = parsed
	}
	if toStr != "" {
		parsed, err := time.Parse(dateLayout, toStr)
		if err != nil {
			return from, to, invalidQuery("date_to", "date_to must use YYYY-MM-DD")
		}
		to = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

func (lc *LogController) parseQuery(c *fiber.Ctx) (logQuery, error) {
	from, to, err := lc.dateRange(c)
	if err != nil {
		return logQuery{}, err
	}
	q := logQuery{
		from:     from,
		to:       to,
		path:     strings.ToLower(c.Query("path")),
		method:   strings.ToUpper(c.Query("method")),
		username: c.Query("username"),
	}
	if s := c.Query("status"); s != "" {
		if q.status, err = strconv.Atoi(s); err != nil {
			return logQuery{}, invalidQuery("status", "status must be a number")
		}
	}
	return q, nil
}

func (q logQuery) match(entry middleware.LogData) bool {
	if entry.Timestamp.Before(q.from) || entry.Timestamp.After(q.to) {
		return false
	}
	if q.path != "" && !strings.Contains(strings.ToLower(entry.Path), q.path) {
		return false
	}
	if q.method != "" && entry.Method != q.method {
		return false
	}
	if q.status != 0 && entry.Status != q.status {
		return false
	}
	if q.username != "" && !strings.EqualFold(entry.Username, q.username) {
		return false
	}
	return true
}

// readLogs returns the matching entries, newest first. A missing log file
// reads as empty; lines that are not JSON are skipped.
func readLogs(path string, q logQuery) ([]middleware.LogData, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []middleware.LogData{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries := []middleware.LogData{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry middleware.LogData
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if q.match(entry) {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// routeStats groups entries by method and path, busiest first.
func routeStats(entries []middleware.LogData) []RouteStats {
	byRoute := make(map[string]*RouteStats)
	successes := make(map[string]int)
	var order []string

	for _, e := range entries {
		key := fmt.Sprintf("%s %s", e.Method, e.Path)
		latency := millis(e.Latency)
		rs, ok := byRoute[key]
		if !ok {
			rs = &RouteStats{Method: e.Method, Path: e.Path, MinLatency: latency, MaxLatency: latency}
			byRoute[key] = rs
			order = append(order, key)
		}
		rs.AvgLatency = (rs.AvgLatency*float64(rs.Count) + latency) / float64(rs.Count+1)
		rs.Count++
		if latency < rs.MinLatency {
			rs.MinLatency = latency
		}
		if latency > rs.MaxLatency {
			rs.MaxLatency = latency
		}
		if isSuccess(e.Status) {
			successes[key]++
		}
	}

	stats := make([]RouteStats, 0, len(order))
	for _, key := range order {
		rs := byRoute[key]
		rs.SuccessRate = float64(successes[key]) / float64(rs.Count)
		stats = append(stats, *rs)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}

// GetLogs pages through the request log.
// Query: page, page_size, date_from, date_to, path, method, status, username.
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	q, err := lc.parseQuery(c)
	if err != nil {
		return respondError(c, err, "Invalid log query")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 50
	}

	entries, err := readLogs(lc.Path, q)
	if err != nil {
		log.Printf("Error reading logs: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read logs",
		})
	}

	total := len(entries)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return c.JSON(LogsResponse{
		Logs:       entries[start:end],
		TotalLogs:  total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
		DateFrom:   q.from,
		DateTo:     q.to,
	})
}

// GetLogStats aggregates the request log for the same filters as GetLogs.
func (lc *LogController) GetLogStats(c *fiber.Ctx) error {
	q, err := lc.parseQuery(c)
	if err != nil {
		return respondError(c, err, "Invalid log query")
	}

	entries, err := readLogs(lc.Path, q)
	if err != nil {
		log.Printf("Error reading logs: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read logs",
		})
	}

	var successful, failed int
	var total time.Duration
	methods := make(map[string]int)
	statuses := make(map[int]int)
	for _, e := range entries {
		if isSuccess(e.Status) {
			successful++
		} else if e.Status >= 400 {
			failed++
		}
		total += e.Latency
		methods[e.Method]++
		statuses[e.Status]++
	}

	avg, successRate := 0.0, 0.0
	if len(entries) > 0 {
		avg = millis(total / time.Duration(len(entries)))
		successRate = float64(successful) / float64(len(entries)) * 100
	}

	routes := routeStats(entries)
	if len(routes) > 10 {
		routes = routes[:10]
	}

	return c.JSON(fiber.Map{
		"total_requests":      len(entries),
		"successful_requests": successful,
		"error_requests":      failed,
		"success_rate":        successRate,
		"avg_latency_ms":      avg,
		"method_stats":        methods,
		"status_stats":        statuses,
		"top_routes":          routes,
		"date_from":           q.from,
		"date_to":             q.to,
	})
}
