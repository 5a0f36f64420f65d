package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `searchstudy console: read-only monitoring for researchers running the search study.

Tools:
- cell_counts: participants per (topic, system) cell. Assignment fills the least-filled cell under the cap.
- list_sessions: live task attempts with elapsed seconds, interaction count and whether the completion gate is open.
- recent_events: local journal of interaction events (query, prompt, ai_response, click, scrap, note,
  final_scrapbook, session_end) with whether delivery to the log table succeeded.

Docs:
- study://docs/design
- study://docs/events
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "study://docs/design",
		Name:        "design",
		Title:       "Study design",
		Description: "Conditions, cells and the completion gate.",
		Content: `# Study design

Each participant gets one topic and one system type:

- Topics: configured scenarios (default Nanotechnology, GMO, Cultivated Meat).
- System types: WebSearch (result list) and ConvSearch (chat with cited sources).

A cell is ` + "`<topic>__<system>`" + `. New participants go to the least-filled cell whose count is
below the cap; ties are broken at random. When every cell has reached the cap the choice is
uniform over all cells.

The task screen unlocks "next" once the participant has spent the required active time and
made the required number of submissions. Active time only accrues while the task is active,
the instructions modal is closed and the page is visible.
`,
	},
	{
		URI:         "study://docs/events",
		Name:        "events",
		Title:       "Interaction events",
		Description: "Log types and their payloads.",
		Content: `# Interaction events

| log_type | when | log_data |
|---|---|---|
| query | web search submitted | query, interaction |
| prompt | chat prompt submitted | prompt, interaction |
| ai_response | chat answer resolved | prompt, response, sources, fallback |
| click | result or citation opened | link, title, position, origin |
| scrap | clipping or web reference saved | the scrapbook item |
| note | free note saved | note, item_id |
| final_scrapbook | task completed | scrapbook, transcript, results, last_query |
| session_end | task completed | elapsed_seconds, interaction_count, scrapbook_items, notes, turns |

Every event is journaled locally whether or not the log table accepted it; ` + "`delivered=false`" + `
rows carry the delivery error.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
