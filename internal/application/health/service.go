package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	catalogsvc "estimate-backend/internal/application/catalog"
	"estimate-backend/internal/pkg/constants"

	"github.com/redis/go-redis/v9"
)

// DBPinger is satisfied by *sql.DB. If nil, database is reported as disconnected.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// CollectResult is the payload of /health/json and the dashboard.
type CollectResult struct {
	Status       string                    `json:"status"`
	Runtime      RuntimeInfo               `json:"runtime"`
	Traffic      TrafficInfo               `json:"traffic"`
	Dependencies map[string]DepStatus      `json:"dependencies"`
	Catalogs     []catalogsvc.SourceStatus `json:"catalogs"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	RSS      int `json:"rss"`
	HeapUsed int `json:"heapUsed"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
}

// CollectHealth gathers health data from Redis, the database and the loaded
// rate catalogs. Redis is optional: without a client it reports "disabled"
// and traffic stays at zero.
func CollectHealth(ctx context.Context, rdb *redis.Client, db DBPinger, catalogs []catalogsvc.SourceStatus) CollectResult {
	result := CollectResult{
		Dependencies: make(map[string]DepStatus),
		Catalogs:     catalogs,
	}
	if result.Catalogs == nil {
		result.Catalogs = []catalogsvc.SourceStatus{}
	}

	dbStatus := "disconnected"
	var dbPingMs *int64
	if db != nil {
		start := time.Now()
		if err := db.PingContext(ctx); err == nil {
			ms := time.Since(start).Milliseconds()
			dbPingMs = &ms
			dbStatus = "connected"
		} else {
			dbStatus = "error"
		}
	}
	result.Dependencies["database"] = DepStatus{Status: dbStatus, PingMs: dbPingMs}

	redisStatus := "disabled"
	var redisPingMs *int64
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startTimeMs := time.Now().UnixMilli()

	if rdb != nil {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisPingMs = &ms
			redisStatus = "connected"
			startTimeMs = readTraffic(ctx, rdb, &stats, startTimeMs)
		} else {
			redisStatus = "error"
		}
	}
	result.Dependencies["redis"] = DepStatus{Status: redisStatus, PingMs: redisPingMs}

	catalogStatus := "loaded"
	for _, c := range catalogs {
		if c.Error != "" {
			catalogStatus = "degraded"
			break
		}
	}
	if len(catalogs) == 0 {
		catalogStatus = "none"
	}
	result.Dependencies["catalogs"] = DepStatus{Status: catalogStatus}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptimeSec := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptimeSec < 0 {
		uptimeSec = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptimeSec,
		Memory:        MemoryInfo{RSS: int(m.Sys / 1024 / 1024), HeapUsed: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}
	result.Traffic = stats

	if dbStatus == "connected" && redisStatus != "error" && catalogStatus != "degraded" {
		result.Status = "ok"
	} else {
		result.Status = "issue"
	}
	return result
}

// readTraffic fills stats from the health marker keys and returns the
// recorded start time, seeding it on first use.
func readTraffic(ctx context.Context, rdb *redis.Client, stats *TrafficInfo, now int64) int64 {
	vals, _ := rdb.MGet(ctx,
		constants.KeyReqTotal, constants.KeyReqErrors, constants.KeyResTime,
		constants.KeyResCount, constants.KeyStartTime, constants.KeyLastReq,
	).Result()
	str := func(i int) string {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				return s
			}
		}
		return ""
	}

	startTimeMs := now
	if s := str(4); s != "" {
		if t, err := strconv.ParseInt(s, 10, 64); err == nil {
			startTimeMs = t
		}
	} else {
		rdb.Set(ctx, constants.KeyStartTime, startTimeMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(str(0))
	stats.FailedCount, _ = strconv.Atoi(str(1))
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	countSum, _ := strconv.Atoi(str(3))
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if s := str(5); s != "" {
		var lastReq map[string]interface{}
		_ = json.Unmarshal([]byte(s), &lastReq)
		stats.LastRequest = lastReq
	}
	return startTimeMs
}
