package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/JNZader/prreviewer/internal/logger"
)

const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Server exposes review tools to an MCP client over JSON-RPC 2.0, one
// message per line.
type Server struct {
	name    string
	version string
	log     *logger.Logger

	mu    sync.RWMutex
	tools map[string]registeredTool
}

type registeredTool struct {
	def     *Tool
	handler ToolHandler
}

// Tool describes a callable tool to the client.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolHandler runs one tool call. Strings and byte slices are returned to
// the client as is, anything else as indented JSON.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// JSONRPCRequest is an incoming call or notification. Notifications have
// no ID.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse carries either Result or Error.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id,omitempty"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError is a protocol level failure. Tool failures are reported in
// the result with isError set instead.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
	Capabilities struct {
		Tools struct {
			ListChanged bool `json:"listChanged"`
		} `json:"tools"`
	} `json:"capabilities"`
}

// NewServer creates a server that reports itself as name/version.
func NewServer(name, version string, log *logger.Logger) *Server {
	return &Server{
		name:    name,
		version: version,
		log:     log.WithPrefix("MCP-SERVER"),
		tools:   make(map[string]registeredTool),
	}
}

// RegisterTool adds or replaces a tool.
func (s *Server) RegisterTool(tool *Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[tool.Name] = registeredTool{def: tool, handler: handler}
}

// Serve answers requests read from r on w until r is exhausted or ctx is
// done. Requests are handled one at a time, in order.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading input: %w", readErr)
		}

		if msg := bytes.TrimSpace(line); len(msg) > 0 {
			if resp := s.dispatch(ctx, msg); resp != nil {
				if err := writeMessage(w, resp); err != nil {
					return fmt.Errorf("writing response: %w", err)
				}
			}
		}

		if readErr != nil {
			return nil
		}
	}
}

// dispatch returns nil for notifications.
func (s *Server) dispatch(ctx context.Context, msg []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return failure(nil, codeParseError, "Parse error", err.Error())
	}

	var resp *JSONRPCResponse
	switch req.Method {
	case "initialize":
		resp = success(req.ID, s.initialize())
	case "tools/list":
		resp = success(req.ID, map[string]interface{}{"tools": s.listTools()})
	case "tools/call":
		resp = s.callTool(ctx, &req)
	case "ping":
		resp = success(req.ID, struct{}{})
	default:
		resp = failure(req.ID, codeMethodNotFound, "Method not found", "Unknown method: "+req.Method)
	}

	if req.ID == nil {
		return nil
	}
	return resp
}

func (s *Server) initialize() initializeResult {
	var res initializeResult
	res.ProtocolVersion = protocolVersion
	res.ServerInfo.Name = s.name
	res.ServerInfo.Version = s.version
	return res
}

// listTools returns the tool definitions sorted by name.
func (s *Server) listTools() []*Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]*Tool, 0, len(s.tools))
	for _, t := range s.tools {
		defs = append(defs, t.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (s *Server) callTool(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	var call struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &call); err != nil {
		return failure(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	s.mu.RLock()
	tool, ok := s.tools[call.Name]
	s.mu.RUnlock()
	if !ok {
		return failure(req.ID, codeInvalidParams, "Unknown tool", "Tool not found: "+call.Name)
	}

	out, err := tool.handler(ctx, call.Arguments)
	if err != nil {
		s.log.Warn("tool %s failed: %v", call.Name, err)
		return success(req.ID, toolResult{
			Content: []textContent{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		})
	}
	return success(req.ID, toolResult{Content: []textContent{{Type: "text", Text: renderOutput(out)}}})
}

func renderOutput(out interface{}) string {
	switch v := out.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", out)
	}
	return string(data)
}

func success(id, result interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func failure(id interface{}, code int, message string, data interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message, Data: data},
	}
}

func writeMessage(w io.Writer, resp *JSONRPCResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
