// Command rhema-coordinator is the CLI entrypoint for the Agent
// Coordination and Conflict-Prevention core: a `serve` subcommand that
// runs the long-lived daemon process (agent state, message bus,
// sessions, task scoring, conflict/prediction/consensus/resolution,
// learning, analysis, knowledge cache, HTTP/WebSocket surface), and a
// set of thin HTTP-client subcommands (`agent`, `session`, `system`,
// `task`) that drive a running daemon, grounded on cmd/cliaimonitor's
// flag-based subcommand dispatch and instance-manager integration.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rhema-sh/coordinator/internal/config"
	"github.com/rhema-sh/coordinator/internal/coordinator"
	"github.com/rhema-sh/coordinator/internal/httpapi"
	"github.com/rhema-sh/coordinator/internal/instance"
	"github.com/rhema-sh/coordinator/internal/prediction"
	"go.uber.org/zap"
)

// Exit codes, per spec §6.
const (
	exitOK         = 0
	exitUnexpected = 1
	exitValidation = 2
	exitAdmission  = 3
	exitTimeout    = 4
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitValidation)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(runServe(os.Args[2:]))
	case "agent":
		os.Exit(runAgent(os.Args[2:]))
	case "session":
		os.Exit(runSession(os.Args[2:]))
	case "system":
		os.Exit(runSystem(os.Args[2:]))
	case "task":
		os.Exit(runTask(os.Args[2:]))
	case "-h", "--help", "help":
		printUsage()
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "rhema-coordinator: unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(exitValidation)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: rhema-coordinator <command> [flags]

commands:
  serve                                run the coordinator daemon
  agent register|list|unregister|status|info|send-message|broadcast
  session create|list|join|leave|send-message|info
  system stats|message-history|monitor|health
  task add|list|score|prioritize`)
}

// --- serve ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":7420", "HTTP listen address")
	configPath := fs.String("config", "", "configuration file (YAML/JSON/TOML)")
	pidFile := fs.String("pid-file", ".rhema/rhema-coordinator.pid", "singleton PID file path")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
		return exitValidation
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
		return exitValidation
	}

	if dir := filepath.Dir(*pidFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
			return exitUnexpected
		}
	}

	port := portFromAddr(*addr)
	inst := instance.NewManager(*pidFile, port)
	if existing, err := inst.CheckExistingInstance(); err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
		return exitUnexpected
	} else if existing != nil {
		resolver := instance.NewConflictResolver(inst, instance.IsInteractive())
		if err := resolver.Resolve(existing); err != nil {
			fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
			return exitAdmission
		}
		port = inst.GetPort()
		*addr = fmt.Sprintf(":%d", port)
	}

	if err := inst.AcquireLock(); err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
		return exitAdmission
	}
	defer inst.ReleaseLock()

	basePath, _ := os.Getwd()
	if err := inst.WritePIDFile(os.Getpid(), port, basePath); err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
		return exitUnexpected
	}
	defer inst.RemovePIDFile()

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	model := prediction.NewLinearModel("default", prediction.DefaultLinearWeights())
	co := coordinator.New(cfg, nil, []prediction.Model{model}, logger)

	if err := co.Agents.LoadLatestSnapshot(); err != nil {
		logger.Warn("failed to load agent state snapshot", zap.Error(err))
	}

	transport, err := co.StartTransport()
	if err != nil {
		logger.Warn("nats transport disabled", zap.Error(err))
	}

	sys := httpapi.NewServer(httpapi.Config{
		MessageHistoryLimit: cfg.MessageHistoryLimit,
		MonitorPushInterval: httpapi.DefaultConfig().MonitorPushInterval,
	}, httpapi.Sources{
		Agents:      co.Agents,
		Messages:    co.Bus,
		Sessions:    co.Sessions,
		Conflicts:   co.Detector,
		Predictions: co.Predictor,
		Learning:    co.Learning,
		Analysis:    co.Analysis,
		Knowledge:   co.Knowledge,
	}, logger.Named("httpapi"))

	admin := coordinator.NewAdminServer(co, logger.Named("admin"))

	mux := http.NewServeMux()
	mux.Handle("/", dispatchHandler(sys, admin))

	srv := &http.Server{Addr: *addr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go co.Agents.Run(ctx)
	go co.Bus.Run(ctx)
	go sys.Run(ctx)
	go runCacheSweep(ctx, co)

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.ListenAndServe() }()

	fmt.Printf("rhema-coordinator listening on %s\n", *addr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "rhema-coordinator: server error: %v\n", err)
		}
	case <-shutdown:
		fmt.Println("rhema-coordinator: shutting down")
	}

	cancel()
	transport.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: shutdown error: %v\n", err)
	}

	if err := co.Agents.Snapshot(); err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: final snapshot failed: %v\n", err)
	}
	return exitOK
}

// portFromAddr extracts the numeric port from a ":7420"-style listen
// address, defaulting to 0 (any) when it can't be parsed.
func portFromAddr(addr string) int {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0
	}
	return port
}

// dispatchHandler routes "/api/system/*" and "/ws/*" to the read-only
// system surface and everything else to the mutating admin surface, so
// both can share a single listen address.
func dispatchHandler(sys *httpapi.Server, admin *coordinator.AdminServer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/system") || strings.HasPrefix(r.URL.Path, "/ws/") {
			sys.Router().ServeHTTP(w, r)
			return
		}
		admin.Router().ServeHTTP(w, r)
	})
}

func runCacheSweep(ctx context.Context, co *coordinator.Coordinator) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			co.Knowledge.Sweep()
		}
	}
}

// --- HTTP client helpers shared by the subcommand groups ---

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func exitCodeForKind(kind string) int {
	switch kind {
	case "admission":
		return exitAdmission
	case "validation", "state":
		return exitValidation
	case "timeout":
		return exitTimeout
	default:
		return exitUnexpected
	}
}

// apiCall issues an HTTP request against the daemon and decodes the JSON
// body into out on success. It returns the process exit code to use.
func apiCall(method, url string, body interface{}, out interface{}) int {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
			return exitUnexpected
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
		return exitUnexpected
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: could not reach daemon: %v\n", err)
		return exitUnexpected
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
		return exitUnexpected
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Error != "" {
			fmt.Fprintf(os.Stderr, "rhema-coordinator: %s\n", apiErr.Error)
			return exitCodeForKind(apiErr.Kind)
		}
		fmt.Fprintf(os.Stderr, "rhema-coordinator: request failed: %s\n", string(raw))
		return exitUnexpected
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fmt.Fprintf(os.Stderr, "rhema-coordinator: %v\n", err)
			return exitUnexpected
		}
	} else {
		fmt.Println(string(raw))
	}
	return exitOK
}

func printJSON(v interface{}) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(buf))
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- agent ---

func runAgent(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitValidation
	}
	sub, rest := args[0], args[1:]
	fs := flag.NewFlagSet("agent "+sub, flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:7420", "daemon address")

	switch sub {
	case "register":
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: agent register <id>")
			return exitValidation
		}
		var out map[string]string
		code := apiCall(http.MethodPost, *addr+"/api/agent/register", map[string]string{"id": fs.Arg(0)}, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "unregister":
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: agent unregister <id>")
			return exitValidation
		}
		var out map[string]string
		code := apiCall(http.MethodPost, *addr+"/api/agent/unregister", map[string]string{"id": fs.Arg(0)}, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "list":
		fs.Parse(rest)
		var out map[string]interface{}
		code := apiCall(http.MethodGet, *addr+"/api/agent/list", nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "status":
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: agent status <id>")
			return exitValidation
		}
		var out map[string]interface{}
		code := apiCall(http.MethodGet, *addr+"/api/agent/status?id="+fs.Arg(0), nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "info":
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: agent info <id>")
			return exitValidation
		}
		var out map[string]interface{}
		code := apiCall(http.MethodGet, *addr+"/api/agent/info?id="+fs.Arg(0), nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "send-message":
		sender := fs.String("sender", "", "sender agent id")
		to := fs.String("to", "", "comma-separated recipient ids")
		msgType := fs.String("type", "status_update", "message type")
		priority := fs.String("priority", "normal", "message priority")
		content := fs.String("content", "", "message content")
		fs.Parse(rest)

		body := map[string]interface{}{
			"senderId":     *sender,
			"recipientIds": splitCSV(*to),
			"type":         *msgType,
			"priority":     *priority,
			"content":      *content,
		}
		var out map[string]string
		code := apiCall(http.MethodPost, *addr+"/api/agent/send-message", body, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "broadcast":
		sender := fs.String("sender", "", "sender agent id")
		msgType := fs.String("type", "status_update", "message type")
		priority := fs.String("priority", "normal", "message priority")
		content := fs.String("content", "", "message content")
		fs.Parse(rest)

		body := map[string]interface{}{
			"senderId": *sender,
			"type":     *msgType,
			"priority": *priority,
			"content":  *content,
		}
		var out map[string]string
		code := apiCall(http.MethodPost, *addr+"/api/agent/broadcast", body, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	default:
		fmt.Fprintf(os.Stderr, "rhema-coordinator: unknown agent subcommand %q\n", sub)
		return exitValidation
	}
}

// --- session ---

func runSession(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitValidation
	}
	sub, rest := args[0], args[1:]
	fs := flag.NewFlagSet("session "+sub, flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:7420", "daemon address")

	switch sub {
	case "create":
		topic := fs.String("topic", "", "session topic")
		participants := fs.String("participants", "", "comma-separated participant ids")
		fs.Parse(rest)
		body := map[string]interface{}{"topic": *topic, "participants": splitCSV(*participants)}
		var out map[string]interface{}
		code := apiCall(http.MethodPost, *addr+"/api/session/create", body, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "list":
		activeOnly := fs.Bool("active", false, "only active sessions")
		detailed := fs.Bool("detailed", true, "include participants")
		fs.Parse(rest)
		url := fmt.Sprintf("%s/api/session/list?active=%t&detailed=%t", *addr, *activeOnly, *detailed)
		var out []map[string]interface{}
		code := apiCall(http.MethodGet, url, nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "join":
		fs.Parse(rest)
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: session join <sessionID> <agentID>")
			return exitValidation
		}
		body := map[string]string{"session": fs.Arg(0), "agent": fs.Arg(1)}
		var out map[string]string
		code := apiCall(http.MethodPost, *addr+"/api/session/join", body, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "leave":
		fs.Parse(rest)
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: session leave <sessionID> <agentID>")
			return exitValidation
		}
		body := map[string]string{"session": fs.Arg(0), "agent": fs.Arg(1)}
		var out map[string]string
		code := apiCall(http.MethodPost, *addr+"/api/session/leave", body, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "send-message":
		sender := fs.String("sender", "", "sender agent id")
		msgType := fs.String("type", "coordination_request", "message type")
		priority := fs.String("priority", "normal", "message priority")
		content := fs.String("content", "", "message content")
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: session send-message <sessionID> -sender ID -content ...")
			return exitValidation
		}
		body := map[string]interface{}{
			"session":  fs.Arg(0),
			"senderId": *sender,
			"type":     *msgType,
			"priority": *priority,
			"content":  *content,
		}
		var out map[string]string
		code := apiCall(http.MethodPost, *addr+"/api/session/send-message", body, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "info":
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: session info <sessionID>")
			return exitValidation
		}
		var out map[string]interface{}
		code := apiCall(http.MethodGet, *addr+"/api/session/info?id="+fs.Arg(0), nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	default:
		fmt.Fprintf(os.Stderr, "rhema-coordinator: unknown session subcommand %q\n", sub)
		return exitValidation
	}
}

// --- system ---

func runSystem(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitValidation
	}
	sub, rest := args[0], args[1:]
	fs := flag.NewFlagSet("system "+sub, flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:7420", "daemon address")

	switch sub {
	case "stats":
		fs.Parse(rest)
		var out map[string]interface{}
		code := apiCall(http.MethodGet, *addr+"/api/system/stats", nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "health":
		fs.Parse(rest)
		var out map[string]interface{}
		code := apiCall(http.MethodGet, *addr+"/api/system/health", nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "message-history":
		limit := fs.Int("limit", 50, "max messages to return")
		fs.Parse(rest)
		url := fmt.Sprintf("%s/api/system/message-history?limit=%d", *addr, *limit)
		var out map[string]interface{}
		code := apiCall(http.MethodGet, url, nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "monitor":
		interval := fs.Duration("interval", 5*time.Second, "polling interval")
		fs.Parse(rest)
		return runMonitor(*addr, *interval)
	default:
		fmt.Fprintf(os.Stderr, "rhema-coordinator: unknown system subcommand %q\n", sub)
		return exitValidation
	}
}

// runMonitor polls /api/system/stats at a fixed interval, a plain
// long-running equivalent of the WebSocket push feed for terminals that
// just want to tail the numbers.
func runMonitor(addr string, interval time.Duration) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var out map[string]interface{}
		if code := apiCall(http.MethodGet, addr+"/api/system/stats", nil, &out); code != exitOK {
			return code
		}
		printJSON(out)
		select {
		case <-sigCh:
			return exitOK
		case <-ticker.C:
		}
	}
}

// --- task ---

func runTask(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitValidation
	}
	sub, rest := args[0], args[1:]
	fs := flag.NewFlagSet("task "+sub, flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:7420", "daemon address")

	switch sub {
	case "add":
		id := fs.String("id", "", "task id")
		title := fs.String("title", "", "task title")
		description := fs.String("description", "", "task description")
		taskType := fs.String("type", "feature", "task type")
		priority := fs.String("priority", "normal", "task priority")
		scope := fs.String("scope", "", "task scope")
		deps := fs.String("deps", "", "comma-separated dependency task ids")
		businessValue := fs.Float64("business-value", 0, "business value [0,1]")
		userImpact := fs.Float64("user-impact", 0, "user impact [0,1]")
		effortHours := fs.Float64("effort-hours", 1, "estimated effort hours")
		risk := fs.Float64("risk", 0, "risk level [0,1]")
		fs.Parse(rest)

		body := map[string]interface{}{
			"id":           *id,
			"title":        *title,
			"description":  *description,
			"type":         *taskType,
			"priority":     *priority,
			"scope":        *scope,
			"dependencies": splitCSV(*deps),
			"scoringFactors": map[string]interface{}{
				"businessValue":        *businessValue,
				"userImpact":           *userImpact,
				"estimatedEffortHours": *effortHours,
				"riskLevel":            *risk,
			},
		}
		var out map[string]interface{}
		code := apiCall(http.MethodPost, *addr+"/api/task/add", body, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "list":
		scope := fs.String("scope", "", "filter by scope")
		fs.Parse(rest)
		var out []map[string]interface{}
		code := apiCall(http.MethodGet, *addr+"/api/task/list?scope="+*scope, nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "score":
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: task score <id>")
			return exitValidation
		}
		var out map[string]interface{}
		code := apiCall(http.MethodGet, *addr+"/api/task/score?id="+fs.Arg(0), nil, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	case "prioritize":
		scope := fs.String("scope", "", "scope to prioritize")
		strategy := fs.String("strategy", "weighted_scoring", "prioritization strategy")
		fs.Parse(rest)
		body := map[string]string{"scope": *scope, "strategy": *strategy}
		var out map[string]interface{}
		code := apiCall(http.MethodPost, *addr+"/api/task/prioritize", body, &out)
		if code == exitOK {
			printJSON(out)
		}
		return code
	default:
		fmt.Fprintf(os.Stderr, "rhema-coordinator: unknown task subcommand %q\n", sub)
		return exitValidation
	}
}
