package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trawlhq/trawl/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for trawl resources.
	uriScheme = "trawl://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing providers.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "providers",
		Name:        "providers",
		Description: "List of all configured provider instances",
		MIMEType:    "application/json",
	}, s.handleProvidersResource)

	// Template for the documents indexed from one provider.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "providers/{providerType}/{providerName}/documents",
		Name:        "provider-documents",
		Description: "Documents indexed from a specific provider instance",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)
}

// handleProvidersResource returns a list of all configured providers.
func (s *Server) handleProvidersResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Providers == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "[]",
			}},
		}, nil
	}

	instances, err := s.ports.Providers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}

	// Build simplified provider list.
	type providerInfo struct {
		Type    string `json:"type"`
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
	}

	infos := make([]providerInfo, len(instances))
	for i, inst := range instances {
		infos[i] = providerInfo{
			Type:    inst.Type.String(),
			Name:    inst.Name,
			Enabled: inst.Enabled,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling providers: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleDocumentsResource returns the documents indexed from one provider.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Tracking == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract the provider reference from the URI:
	// trawl://providers/{providerType}/{providerName}/documents
	providerType, providerName := extractProviderRef(req.Params.URI)
	if !providerType.IsValid() || providerName == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	records, err := s.ports.Tracking.ListTracking(ctx, providerType, providerName)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	// Build simplified document list.
	type docInfo struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Chunks   int    `json:"chunks"`
	}

	infos := make([]docInfo, len(records))
	for i := range records {
		infos[i] = docInfo{
			ID:       records[i].DocumentID,
			Filename: records[i].Filename,
			Chunks:   records[i].ChunkCount,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractProviderRef extracts the provider type and name from a URI like
// trawl://providers/{providerType}/{providerName}/documents.
func extractProviderRef(uri string) (domain.ProviderType, string) {
	const prefix = uriScheme + "providers/"
	const suffix = "/documents"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return "", ""
	}

	ref := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ""
	}

	return domain.ProviderType(parts[0]), parts[1]
}
