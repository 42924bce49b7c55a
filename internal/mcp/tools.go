package mcp

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/internal/domain"
)

// Tool names
const (
	ToolComputeLayout = "compute_lollipop_layout"
	ToolRenderSVG     = "render_lollipop_svg"
)

// layoutRequestSchema describes domain.LayoutRequest loosely. Track level
// checks are left to the engine so that its error messages reach the caller.
func layoutRequestSchema() *jsonschema.Schema {
	rng := &jsonschema.Schema{
		Type:     "array",
		Items:    &jsonschema.Schema{Type: "integer"},
		MinItems: jsonschema.Ptr(2),
		MaxItems: jsonschema.Ptr(2),
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"tracks": {
				Type:        "array",
				Description: "Tracks stacked top to bottom. Each has name, type (positionBar or variants), view and, for variants tracks, variants [{id, start}].",
				Items:       &jsonschema.Schema{Type: "object"},
			},
			"width":         {Type: "number", Description: "Canvas width in pixels"},
			"view_range":    withDescription(rng, "Pixel window [lo, hi] on the navigation bar"),
			"protein_range": withDescription(rng, "Protein window [start, end] to zoom to"),
			"explode": {
				Type:        "object",
				Description: "Cluster to fan out",
				Properties: map[string]*jsonschema.Schema{
					"track":   {Type: "string"},
					"node_id": {Type: "string"},
				},
			},
			"source": {
				Type:        "object",
				Description: "Fill a variants track from the remote variant source",
				Properties: map[string]*jsonschema.Schema{
					"gene":  {Type: "string"},
					"track": {Type: "string"},
				},
			},
		},
	}
}

func withDescription(s *jsonschema.Schema, description string) *jsonschema.Schema {
	c := *s
	c.Description = description
	return &c
}

// registerTools registers all layout tools with the MCP SDK
func (s *Server) registerTools() {
	s.mcpServer.AddTool(&mcp.Tool{
		Name:        ToolComputeLayout,
		Description: "Compute the collision-free lollipop layout of protein variant tracks. Returns node positions, clusters and the visible protein window as JSON.",
		InputSchema: layoutRequestSchema(),
	}, s.handleComputeLayout)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        ToolRenderSVG,
		Description: "Render protein variant tracks as a lollipop diagram and return the SVG document.",
		InputSchema: layoutRequestSchema(),
	}, s.handleRenderSVG)

	s.logger.WithField("tool_count", 2).Debug("Registered MCP tools")
}

func (s *Server) handleComputeLayout(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", ToolComputeLayout).Info("Tool invoked")

	layoutReq, errResult := decodeRequest(req)
	if errResult != nil {
		return errResult, nil
	}
	result, err := s.layouts.ComputeLayout(ctx, layoutReq)
	if err != nil {
		return s.toolError(ToolComputeLayout, err), nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func (s *Server) handleRenderSVG(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", ToolRenderSVG).Info("Tool invoked")

	layoutReq, errResult := decodeRequest(req)
	if errResult != nil {
		return errResult, nil
	}
	doc, _, err := s.layouts.RenderSVG(ctx, layoutReq)
	if err != nil {
		return s.toolError(ToolRenderSVG, err), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(doc)}},
	}, nil
}

func decodeRequest(req *mcp.CallToolRequest) (*domain.LayoutRequest, *mcp.CallToolResult) {
	var layoutReq domain.LayoutRequest
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil, errorResult(domain.NewAPIError(domain.ErrInvalidInput, "arguments are required", "", ""))
	}
	if err := json.Unmarshal(req.Params.Arguments, &layoutReq); err != nil {
		return nil, errorResult(domain.NewAPIError(domain.ErrInvalidInput, "invalid arguments", err.Error(), ""))
	}
	return &layoutReq, nil
}

// toolError reports err inside the tool result so the client model can see
// and correct it.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	resp, _ := domain.ErrorResponse(err, "")
	s.logger.WithError(err).WithFields(logrus.Fields{
		"tool": tool,
		"code": resp.Code,
	}).Warn("Tool call failed")
	return errorResult(resp)
}

func errorResult(resp *domain.APIError) *mcp.CallToolResult {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(resp.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}
