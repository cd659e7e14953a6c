package operation

import (
	"github.com/go-training/spotify-oauth/pkg/operation/spotify"

	"github.com/mark3labs/mcp-go/server"
)

/*
RegisterSpotifyTool registers the Spotify authorization tools to the specified MCPServer instance.

Parameters:
  - s: Pointer to the MCPServer instance where the tools will be registered.

The handlers read the token exchange client and the pending authorization
store from the request context; see spotify.WithClient and core.WithStore.
*/
func RegisterSpotifyTool(s *server.MCPServer) {
	tool := &Tool{}

	tool.RegisterWrite(server.ServerTool{
		Tool:    spotify.AuthorizeURLTool,
		Handler: spotify.HandleAuthorizeURLTool,
	})
	tool.RegisterWrite(server.ServerTool{
		Tool:    spotify.ExchangeCodeTool,
		Handler: spotify.HandleExchangeCodeTool,
	})
	tool.RegisterWrite(server.ServerTool{
		Tool:    spotify.RefreshTokenTool,
		Handler: spotify.HandleRefreshTokenTool,
	})
	tool.RegisterRead(server.ServerTool{
		Tool:    spotify.TokenStatusTool,
		Handler: spotify.HandleTokenStatusTool,
	})
	tool.RegisterRead(server.ServerTool{
		Tool:    spotify.ListScopesTool,
		Handler: spotify.HandleListScopesTool,
	})

	s.AddTools(tool.Tools()...)
}

// Tool collects tools before they are added to an MCPServer. Write tools
// change state (the pending store or the provider); read tools do not.
type Tool struct {
	write []server.ServerTool
	read  []server.ServerTool
}

// RegisterWrite registers a ServerTool as a write operation.
func (t *Tool) RegisterWrite(s server.ServerTool) {
	t.write = append(t.write, s)
}

// RegisterRead registers a ServerTool as a read operation.
func (t *Tool) RegisterRead(s server.ServerTool) {
	t.read = append(t.read, s)
}

/*
Tools returns all registered ServerTools, write tools first followed by read tools.
*/
func (t *Tool) Tools() []server.ServerTool {
	tools := make([]server.ServerTool, 0, len(t.write)+len(t.read))
	tools = append(tools, t.write...)
	tools = append(tools, t.read...)
	return tools
}
