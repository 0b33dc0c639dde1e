package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// JSON-RPC structures
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCP structures
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MCPServer exposes the scheduling, projection and delivery rules as tools.
// It needs no database.
type MCPServer struct{}

func NewMCPServer() *MCPServer {
	return &MCPServer{}
}

// Run serves newline-delimited JSON-RPC requests until r is exhausted.
func (s *MCPServer) Run(r io.Reader, w io.Writer) {
	reader := bufio.NewReader(r)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			log.Printf("mcp: read: %v", err)
			return
		}

		if trimmed := strings.TrimSpace(line); trimmed != "" {
			var req JSONRPCRequest
			if jsonErr := json.Unmarshal([]byte(trimmed), &req); jsonErr != nil {
				log.Printf("mcp: parse request: %v", jsonErr)
				s.write(w, JSONRPCResponse{JSONRPC: "2.0", Error: &RPCError{Code: -32700, Message: "Parse error"}})
			} else if req.ID != nil {
				// notifications get no response
				s.write(w, s.handleRequest(req))
			}
		}

		if err == io.EOF {
			return
		}
	}
}

func (s *MCPServer) write(w io.Writer, resp JSONRPCResponse) {
	responseBytes, err := json.Marshal(resp)
	if err != nil {
		log.Printf("mcp: marshal response: %v", err)
		return
	}
	fmt.Fprintln(w, string(responseBytes))
}

func (s *MCPServer) handleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: toolDefinitions()}}
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *MCPServer) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
	result.ServerInfo.Name = "strata-mcp"
	result.ServerInfo.Version = "1.0.0"

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *MCPServer) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: "Invalid params"},
		}
	}

	var (
		result interface{}
		err    error
	)
	switch params.Name {
	case "strata_next_occurrences":
		result, err = nextOccurrences(params.Arguments)
	case "strata_project_fund":
		result, err = projectFund(params.Arguments)
	case "strata_should_deliver":
		result, err = shouldDeliver(params.Arguments)
	default:
		err = fmt.Errorf("unknown tool: %s", params.Name)
	}

	var text string
	if err != nil {
		text = err.Error()
	} else {
		pretty, marshalErr := json.MarshalIndent(result, "", "  ")
		if marshalErr != nil {
			text, err = marshalErr.Error(), marshalErr
		} else {
			text = string(pretty)
		}
	}

	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: text}},
			IsError: err != nil,
		},
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	server := NewMCPServer()
	server.Run(os.Stdin, os.Stdout)
}
