package enrich

import (
	"context"

	"github.com/gridloom/gridloom/internal/grid"
)

// AgentCall is one per-row agent invocation: the agent config plus the
// prompt with all column references already resolved against the row.
type AgentCall struct {
	Agent  grid.Agent
	Prompt string
	Row    grid.Row
}

// AgentResult is what an agent provider returns for one row. Output lands
// in the agent's connected column; Fields are extra named values merged
// into the row under their own keys (never replacing the whole row).
type AgentResult struct {
	Output grid.Value
	Fields map[string]grid.Value
}

// AgentProvider executes one agent call. Implementations are thin proxies
// to LLM/search backends; the runner's only contract with them is: call
// with the resolved prompt, await, and route the result or error into the
// per-row write-back path. The runner never retries.
type AgentProvider interface {
	RunAgent(ctx context.Context, call AgentCall) (AgentResult, error)
}

// HTTPCall is one per-row HTTP request with its template resolved.
type HTTPCall struct {
	Request  grid.HTTPRequest
	Resolved string
	Row      grid.Row
}

// HTTPProvider executes one HTTP enrichment call.
type HTTPProvider interface {
	RunRequest(ctx context.Context, call HTTPCall) (grid.Value, error)
}

// CompanyRecord is a registry hit for the first workflow stage.
type CompanyRecord struct {
	CompanyID string
	Name      string
	Website   string
}

// Owner is one registered officer from the second workflow stage.
type Owner struct {
	Name      string
	Role      string
	Prokurist bool
}

// RegistryProvider performs the two-stage company-registry lookups.
type RegistryProvider interface {
	// LookupCompany finds a company by name and/or website.
	LookupCompany(ctx context.Context, name, website string) (CompanyRecord, error)

	// LookupOwners lists officers for a registry company id. Prokurists are
	// included only when includeProkurist is set.
	LookupOwners(ctx context.Context, companyID string, includeProkurist bool) ([]Owner, error)
}
