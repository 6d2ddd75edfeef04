package mcp

// ToolDefinitions returns the MCP tool definitions for the memory server.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "memory_ingest",
			Description: "Store knowledge from free text. The server extracts subject-predicate-object " +
				"facts and merges them with what it already knows, so re-ingesting the same fact is safe.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text":   {Type: "string", Description: "Free text to extract facts from"},
					"source": {Type: "string", Description: "Provenance label (default mcp)"},
				},
				Required: []string{"text"},
			},
		},
		{
			Name: "memory_query",
			Description: "Semantic recall over stored facts. Results are ranked by similarity blended " +
				"with confidence, so older unreinforced facts rank lower. Empty results are normal.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text":  {Type: "string", Description: "Natural language query"},
					"limit": {Type: "number", Description: "Maximum results (default 10)", Default: 10},
					"topics": {Type: "array", Description: "Restrict to these topic tags",
						Items: &Items{Type: "string"}},
					"predicate":     {Type: "string", Description: "Restrict to one predicate"},
					"minConfidence": {Type: "number", Description: "Drop facts below this confidence"},
				},
				Required: []string{"text"},
			},
		},
		{
			Name: "memory_expand",
			Description: "Walk associative hops out from seed entities and return the connected subgraph. " +
				"Use after memory_query to discover related facts the query text never mentioned.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"entities": {Type: "array", Description: "Seed entity names",
						Items: &Items{Type: "string"}},
					"maxHops": {Type: "number", Description: "Hop ceiling (default 2)", Default: 2},
					"branchingLimit": {Type: "number", Description: "Strongest links kept per entity (default 5)",
						Default: 5},
				},
				Required: []string{"entities"},
			},
		},
		{
			Name: "episode_add_turn",
			Description: "Append a conversation turn to the session's open episode. Episodes roll over " +
				"automatically at the turn ceiling and are consolidated into facts in the background.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sessionId": {Type: "string", Description: "Session the turn belongs to"},
					"role": {Type: "string", Description: "Speaker of the turn",
						Enum: []string{"user", "assistant", "system"}},
					"content": {Type: "string", Description: "Turn text"},
				},
				Required: []string{"sessionId", "role", "content"},
			},
		},
		{
			Name: "episode_search",
			Description: "Find past episodes in a session whose turns mention the query text. " +
				"Matching is literal, not semantic; use memory_query for meaning-based recall.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sessionId": {Type: "string", Description: "Session to search"},
					"query":     {Type: "string", Description: "Substring to look for in turns"},
					"limit":     {Type: "number", Description: "Maximum episodes (default 10)", Default: 10},
				},
				Required: []string{"sessionId", "query"},
			},
		},
		{
			Name:        "episode_timeline",
			Description: "Summarize a session's recent activity grouped by day, newest day first.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sessionId": {Type: "string", Description: "Session to summarize"},
					"days":      {Type: "number", Description: "Days to cover (default 7)", Default: 7},
				},
				Required: []string{"sessionId"},
			},
		},
		{
			Name: "goal_create",
			Description: "Create a goal for an owner. Goals are identified by description plus owner, " +
				"so creating the same goal twice returns the existing one instead of a duplicate.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"description": {Type: "string", Description: "What the goal is"},
					"owner":       {Type: "string", Description: "Who the goal belongs to"},
					"priority":    {Type: "number", Description: "1 (lowest) to 5 (highest), default 3", Default: 3},
					"goalType": {Type: "string", Description: "Kind of goal",
						Enum: []string{"standard", "instrumental", "derived"}},
					"isForeverGoal": {Type: "boolean", Description: "Ongoing goal that can never complete"},
					"dependsOn": {Type: "array", Description: "Descriptions of goals that must complete first",
						Items: &Items{Type: "string"}},
					"parentGoal": {Type: "string", Description: "Description of the parent goal, if a subgoal"},
				},
				Required: []string{"description", "owner"},
			},
		},
		{
			Name: "goal_update",
			Description: "Change a goal's status or metadata. Completing a goal with unmet dependencies " +
				"blocks it instead; check the returned status.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"description": {Type: "string", Description: "Goal description"},
					"owner":       {Type: "string", Description: "Goal owner"},
					"status": {Type: "string", Description: "New status",
						Enum: []string{"pending", "in_progress", "ongoing", "blocked", "completed", "cancelled"}},
					"priority":        {Type: "number", Description: "New priority, 1 to 5"},
					"blockerReason":   {Type: "string", Description: "Why the goal is blocked"},
					"completionNotes": {Type: "string", Description: "Notes recorded on completion"},
				},
				Required: []string{"description", "owner"},
			},
		},
		{
			Name:        "goal_query",
			Description: "List an owner's goals filtered by status or priority, highest priority first.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"owner": {Type: "string", Description: "Goal owner"},
					"status": {Type: "string", Description: "Only goals in this status",
						Enum: []string{"pending", "in_progress", "ongoing", "blocked", "completed", "cancelled"}},
					"activeOnly": {Type: "boolean", Description: "Only pending, in_progress, and ongoing goals"},
					"limit":      {Type: "number", Description: "Maximum goals (default 20)", Default: 20},
				},
				Required: []string{"owner"},
			},
		},
		{
			Name: "goal_suggest",
			Description: "Suggest the owner's best next goal to work on, with the scoring reasoning. " +
				"Returns null when no goal is actionable.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"owner": {Type: "string", Description: "Goal owner"},
				},
				Required: []string{"owner"},
			},
		},
	}
}
