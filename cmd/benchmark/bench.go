package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081
)

var (
	streamLines = [][]byte{
		[]byte(`{"message":{"role":"assistant","content":"Bench"},"done":false}`),
		[]byte(`{"message":{"role":"assistant","content":"mark"},"done":false}`),
		[]byte(`{"message":{"role":"assistant","content":" response"},"done":false}`),
		[]byte(`{"done":true,"prompt_eval_count":12,"eval_count":3}`),
	}
	unaryResp = []byte(`{"message":{"role":"assistant","content":"Hello from the bench upstream"},"done":true,"prompt_eval_count":12,"eval_count":7}`)
	tagsResp  = []byte(`{"models":[{"name":"bench-model","modified_at":"2025-01-01T00:00:00Z","size":1}]}`)
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	stream := flag.Bool("stream", false, "Use streaming requests")
	anthropic := flag.Bool("anthropic", false, "Attack the /v1/messages endpoint instead of /v1/chat/completions")
	flag.Parse()

	go startMockUpstream()

	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("build failed: %v", err)
	}

	app := exec.Command("bin/server")
	app.Env = append(os.Environ(),
		"SERVER_PORT="+strconv.Itoa(appPort),
		"SERVER_ENV=production",
		fmt.Sprintf("UPSTREAM_BASE_URL=http://127.0.0.1:%d/api", mockPort),
		"OLLAMA_API_KEYS=bench-key-1,bench-key-2",
		"RATE_LIMIT_REQUESTS_PER_SECOND=100000",
		"RATE_LIMIT_BURST=100000",
		"LOG_LEVEL=error",
	)
	app.Stdout = os.Stdout
	app.Stderr = os.Stderr
	if err := app.Start(); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
	defer func() {
		_ = app.Process.Kill()
	}()

	waitForReady(fmt.Sprintf("http://127.0.0.1:%d/health", appPort))

	path := "/v1/chat/completions"
	if *anthropic {
		path = "/v1/messages"
	}
	body, _ := json.Marshal(map[string]interface{}{
		"model":      "bench-model",
		"max_tokens": 64,
		"stream":     *stream,
		"messages": []map[string]string{
			{"role": "user", "content": "ping"},
		},
	})

	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("http://127.0.0.1:%d%s", appPort, path),
		Body:   body,
		Header: http.Header{"Content-Type": []string{"application/json"}},
	})

	attacker := vegeta.NewAttacker()
	pacer := vegeta.Rate{Freq: *rate, Per: time.Second}

	fmt.Printf("Attacking %s at %d rps for %s (stream=%v)\n", path, *rate, *duration, *stream)

	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, pacer, *duration, "bridge-bench") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Printf("Requests:  %d\n", metrics.Requests)
	fmt.Printf("Success:   %.2f%%\n", metrics.Success*100)
	fmt.Printf("p50:       %s\n", metrics.Latencies.P50)
	fmt.Printf("p95:       %s\n", metrics.Latencies.P95)
	fmt.Printf("p99:       %s\n", metrics.Latencies.P99)
	fmt.Printf("Max:       %s\n", metrics.Latencies.Max)
}

func startMockUpstream() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(unaryResp)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, line := range streamLines {
			_, _ = w.Write(line)
			_, _ = w.Write([]byte("\n"))
			flusher.Flush()
		}
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(tagsResp)
	})

	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux))
}

func waitForReady(url string) {
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	log.Fatal("server never became ready")
}
