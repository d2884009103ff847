package crm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerTools registers all CRM lookup tools on the MCP server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.getCustomerDetailTool(),
		s.getSubscriptionDetailTool(),
		s.getDataUsageTool(),
		s.getBillingSummaryTool(),
		s.getCustomerOrdersTool(),
		s.getSecurityLogsTool(),
		s.searchKnowledgeBaseTool(),
		s.unlockAccountTool(),
	)
}

func (s *Server) getCustomerDetailTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_customer_detail",
		mcplib.WithDescription("Get the full customer record by customer ID"),
		mcplib.WithNumber("customer_id",
			mcplib.Required(),
			mcplib.Description("The customer ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetCustomerDetail}
}

func (s *Server) getSubscriptionDetailTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_subscription_detail",
		mcplib.WithDescription("List the customer's subscriptions with plan, cost and data limit"),
		mcplib.WithNumber("customer_id",
			mcplib.Required(),
			mcplib.Description("The customer ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetSubscriptionDetail}
}

func (s *Server) getDataUsageTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_data_usage",
		mcplib.WithDescription("Get recent per-day data usage including roaming volume and country"),
		mcplib.WithNumber("customer_id",
			mcplib.Required(),
			mcplib.Description("The customer ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetDataUsage}
}

func (s *Server) getBillingSummaryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_billing_summary",
		mcplib.WithDescription("Get recent charges including disputed amounts"),
		mcplib.WithNumber("customer_id",
			mcplib.Required(),
			mcplib.Description("The customer ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetBillingSummary}
}

func (s *Server) getCustomerOrdersTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_customer_orders",
		mcplib.WithDescription("List the customer's recent orders"),
		mcplib.WithNumber("customer_id",
			mcplib.Required(),
			mcplib.Description("The customer ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetCustomerOrders}
}

func (s *Server) getSecurityLogsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_security_logs",
		mcplib.WithDescription("Get recent security events such as logins, password resets and SIM swap requests"),
		mcplib.WithNumber("customer_id",
			mcplib.Required(),
			mcplib.Description("The customer ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetSecurityLogs}
}

func (s *Server) searchKnowledgeBaseTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("search_knowledge_base",
		mcplib.WithDescription("Search internal policy and support articles"),
		mcplib.WithString("query",
			mcplib.Required(),
			mcplib.Description("Search terms"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleSearchKnowledgeBase}
}

func (s *Server) unlockAccountTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("unlock_account",
		mcplib.WithDescription("Unlock a customer account after identity verification"),
		mcplib.WithNumber("customer_id",
			mcplib.Required(),
			mcplib.Description("The customer ID to unlock"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleUnlockAccount}
}

func (s *Server) handleGetCustomerDetail(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := customerID(req)
	if res != nil {
		return res, nil
	}
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return lookupError("customer", id, err), nil
	}
	return toolResultJSON(c)
}

func (s *Server) handleGetSubscriptionDetail(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := customerID(req)
	if res != nil {
		return res, nil
	}
	subs, err := s.store.GetSubscriptions(ctx, id)
	if err != nil {
		return lookupError("subscriptions", id, err), nil
	}
	return toolResultJSON(subs)
}

func (s *Server) handleGetDataUsage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := customerID(req)
	if res != nil {
		return res, nil
	}
	usage, err := s.store.GetDataUsage(ctx, id)
	if err != nil {
		return lookupError("data usage", id, err), nil
	}
	return toolResultJSON(usage)
}

func (s *Server) handleGetBillingSummary(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := customerID(req)
	if res != nil {
		return res, nil
	}
	billing, err := s.store.GetBillingSummary(ctx, id)
	if err != nil {
		return lookupError("billing", id, err), nil
	}
	return toolResultJSON(billing)
}

func (s *Server) handleGetCustomerOrders(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := customerID(req)
	if res != nil {
		return res, nil
	}
	orders, err := s.store.GetOrders(ctx, id)
	if err != nil {
		return lookupError("orders", id, err), nil
	}
	return toolResultJSON(orders)
}

func (s *Server) handleGetSecurityLogs(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := customerID(req)
	if res != nil {
		return res, nil
	}
	logs, err := s.store.GetSecurityLogs(ctx, id)
	if err != nil {
		return lookupError("security logs", id, err), nil
	}
	return toolResultJSON(logs)
}

func (s *Server) handleSearchKnowledgeBase(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query, ok := req.GetArguments()["query"].(string)
	if !ok || query == "" {
		return mcplib.NewToolResultError("query is required"), nil
	}
	articles, err := s.store.SearchKnowledgeBase(ctx, query)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("knowledge base search failed", err), nil
	}
	return toolResultJSON(articles)
}

func (s *Server) handleUnlockAccount(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := customerID(req)
	if res != nil {
		return res, nil
	}
	if err := s.store.SetAccountStatus(ctx, id, "active"); err != nil {
		return lookupError("account", id, err), nil
	}
	s.logger.Info("account unlocked", "customer_id", id)
	return toolResultJSON(map[string]any{"customer_id": id, "account_status": "active"})
}

// customerID extracts the customer_id argument. JSON numbers arrive as float64.
func customerID(req mcplib.CallToolRequest) (int, *mcplib.CallToolResult) {
	v, ok := req.GetArguments()["customer_id"].(float64)
	if !ok {
		return 0, mcplib.NewToolResultError("customer_id is required")
	}
	return int(v), nil
}

func lookupError(what string, id int, err error) *mcplib.CallToolResult {
	if errors.Is(err, sql.ErrNoRows) {
		return mcplib.NewToolResultError(fmt.Sprintf("no %s found for customer %d", what, id))
	}
	return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to load %s for customer %d", what, id), err)
}

func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
