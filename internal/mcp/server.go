package mcp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const protocolVersion = "2024-11-05"

// Server implements an MCP stdio server that delegates to the HTTP memory server.
type Server struct {
	serverURL string
	client    *http.Client
}

// NewServer creates a new MCP server.
func NewServer(serverURL string) *Server {
	return &Server{
		serverURL: strings.TrimRight(serverURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Run starts the stdio event loop. Blocks until stdin is closed.
func (s *Server) Run() error {
	scanner := bufio.NewScanner(os.Stdin)
	// Increase buffer for large messages
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(nil, -32700, "parse error: "+err.Error())
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			s.writeResponse(resp)
		}
	}

	return scanner.Err()
}

func (s *Server) handleRequest(req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		// Notification, no response expected
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]string{}}
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "method not found: " + req.Method},
		}
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: ServerCapabilities{
				Tools: &ToolCapabilities{},
			},
			ServerInfo: ServerInfo{
				Name:    "sophia-memory",
				Version: "1.0.0",
			},
		},
	}
}

func (s *Server) handleToolsList(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  ToolsListResult{Tools: ToolDefinitions()},
	}
}

func (s *Server) handleToolsCall(req *Request) *Response {
	paramsBytes, err := json.Marshal(req.Params)
	if err != nil {
		return s.errorResponse(req.ID, -32602, "invalid params")
	}

	var params CallToolParams
	if err := json.Unmarshal(paramsBytes, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "invalid params: "+err.Error())
	}

	result, isError := s.dispatchTool(params.Name, params.Arguments)

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

func (s *Server) dispatchTool(name string, args map[string]interface{}) (string, bool) {
	switch name {
	case "memory_ingest":
		return s.toolIngest(args)
	case "memory_query":
		return s.toolQuery(args)
	case "memory_expand":
		return s.toolExpand(args)
	case "episode_add_turn":
		return s.toolAddTurn(args)
	case "episode_search":
		return s.toolEpisodeSearch(args)
	case "episode_timeline":
		return s.toolEpisodeTimeline(args)
	case "goal_create":
		return s.toolGoalCreate(args)
	case "goal_update":
		return s.toolGoalUpdate(args)
	case "goal_query":
		return s.toolGoalQuery(args)
	case "goal_suggest":
		return s.toolGoalSuggest(args)
	default:
		return fmt.Sprintf("unknown tool: %s", name), true
	}
}

// --- Tool implementations (HTTP delegation) ---

func (s *Server) toolIngest(args map[string]interface{}) (string, bool) {
	body := map[string]interface{}{
		"text":   args["text"],
		"source": getString(args, "source", "mcp"),
	}
	return s.httpSend(http.MethodPost, "/api/ingest", body)
}

func (s *Server) toolQuery(args map[string]interface{}) (string, bool) {
	body := map[string]interface{}{
		"text":  args["text"],
		"limit": getFloat(args, "limit", 10),
	}
	filters := map[string]interface{}{}
	if v, ok := args["topics"]; ok {
		filters["topics"] = v
	}
	if v, ok := args["predicate"]; ok {
		filters["predicate"] = v
	}
	if v, ok := args["minConfidence"]; ok {
		filters["minConfidence"] = v
	}
	if len(filters) > 0 {
		body["filters"] = filters
	}
	return s.httpSend(http.MethodPost, "/api/query", body)
}

func (s *Server) toolExpand(args map[string]interface{}) (string, bool) {
	body := map[string]interface{}{
		"entities":       args["entities"],
		"maxHops":        getFloat(args, "maxHops", 2),
		"branchingLimit": getFloat(args, "branchingLimit", 5),
	}
	return s.httpSend(http.MethodPost, "/api/expand", body)
}

func (s *Server) toolAddTurn(args map[string]interface{}) (string, bool) {
	body := map[string]interface{}{
		"sessionId": args["sessionId"],
		"role":      getString(args, "role", "user"),
		"content":   args["content"],
	}
	return s.httpSend(http.MethodPost, "/api/episodes/turns", body)
}

func (s *Server) toolEpisodeSearch(args map[string]interface{}) (string, bool) {
	q := url.Values{}
	q.Set("session_id", getString(args, "sessionId", ""))
	q.Set("q", getString(args, "query", ""))
	q.Set("limit", fmt.Sprintf("%d", int(getFloat(args, "limit", 10))))
	return s.httpGet("/api/episodes/search?" + q.Encode())
}

func (s *Server) toolEpisodeTimeline(args map[string]interface{}) (string, bool) {
	q := url.Values{}
	q.Set("session_id", getString(args, "sessionId", ""))
	q.Set("days", fmt.Sprintf("%d", int(getFloat(args, "days", 7))))
	return s.httpGet("/api/episodes/timeline?" + q.Encode())
}

func (s *Server) toolGoalCreate(args map[string]interface{}) (string, bool) {
	body := map[string]interface{}{
		"description": args["description"],
		"owner":       args["owner"],
		"priority":    getFloat(args, "priority", 3),
	}
	if v, ok := args["goalType"]; ok {
		body["goalType"] = v
	}
	if v, ok := args["isForeverGoal"]; ok {
		body["isForeverGoal"] = v
	}
	if v, ok := args["dependsOn"]; ok {
		body["dependsOn"] = v
	}
	if v, ok := args["parentGoal"]; ok {
		body["parentGoal"] = v
	}
	return s.httpSend(http.MethodPost, "/api/goals", body)
}

func (s *Server) toolGoalUpdate(args map[string]interface{}) (string, bool) {
	body := map[string]interface{}{
		"description": args["description"],
		"owner":       args["owner"],
	}
	for _, key := range []string{"status", "blockerReason", "completionNotes"} {
		if v, ok := args[key]; ok {
			body[key] = v
		}
	}
	if v, ok := args["priority"]; ok {
		body["priority"] = v
	}
	return s.httpSend(http.MethodPatch, "/api/goals", body)
}

func (s *Server) toolGoalQuery(args map[string]interface{}) (string, bool) {
	q := url.Values{}
	q.Set("owner", getString(args, "owner", ""))
	if v := getString(args, "status", ""); v != "" {
		q.Set("status", v)
	}
	if v, ok := args["activeOnly"].(bool); ok && v {
		q.Set("active_only", "true")
	}
	q.Set("limit", fmt.Sprintf("%d", int(getFloat(args, "limit", 20))))
	return s.httpGet("/api/goals?" + q.Encode())
}

func (s *Server) toolGoalSuggest(args map[string]interface{}) (string, bool) {
	q := url.Values{}
	q.Set("owner", getString(args, "owner", ""))
	return s.httpGet("/api/goals/suggest?" + q.Encode())
}

// --- HTTP helpers ---

func (s *Server) httpSend(method, path string, body interface{}) (string, bool) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf("marshal error: %s", err), true
	}

	req, err := http.NewRequest(method, s.serverURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Sprintf("request error: %s", err), true
	}
	req.Header.Set("Content-Type", "application/json")

	return s.do(req)
}

func (s *Server) httpGet(path string) (string, bool) {
	req, err := http.NewRequest(http.MethodGet, s.serverURL+path, nil)
	if err != nil {
		return fmt.Sprintf("request error: %s", err), true
	}
	return s.do(req)
}

func (s *Server) do(req *http.Request) (string, bool) {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("HTTP error: %s", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("read error: %s", err), true
	}

	if resp.StatusCode >= 400 {
		return string(respBody), true
	}

	return string(respBody), false
}

// --- Response helpers ---

func (s *Server) writeResponse(resp *Response) {
	data, _ := json.Marshal(resp)
	fmt.Fprintf(os.Stdout, "%s\n", data)
}

func (s *Server) writeError(id interface{}, code int, message string) {
	resp := &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
	s.writeResponse(resp)
}

func (s *Server) errorResponse(id interface{}, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}

// --- Argument helpers ---

func getFloat(args map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := args[key]; ok {
		switch val := v.(type) {
		case float64:
			return val
		case int:
			return float64(val)
		}
	}
	return fallback
}

func getString(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
