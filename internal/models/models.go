package models

import "time"

// DataQuery is the structured dataset recommendation returned to callers.
type DataQuery struct {
	Summary            string   `json:"summary" jsonschema:"description=Short overview of the recommended datasets"`
	RelevancyExplained string   `json:"relevancyExplained" jsonschema:"description=Why the datasets fit the user's project"`
	Sources            []string `json:"sources" jsonschema:"description=Source URLs of the recommended datasets"`
	ToolsUsed          []string `json:"tools_used" jsonschema:"description=Names of the tools used to find the datasets"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type ChatSession struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	Model     string    `json:"model"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exchange is the pair of turns one answered query adds to a conversation.
func Exchange(query, answer string) []Turn {
	return []Turn{
		{Role: RoleUser, Text: query},
		{Role: RoleAssistant, Text: answer},
	}
}

// Append adds turns and keeps at most maxTurns of the most recent ones. Zero keeps all.
func (s *ChatSession) Append(maxTurns int, turns ...Turn) {
	s.Turns = append(s.Turns, turns...)
	if maxTurns > 0 && len(s.Turns) > maxTurns {
		s.Turns = append([]Turn(nil), s.Turns[len(s.Turns)-maxTurns:]...)
	}
}

// Recommendation is an archived answer together with the query that produced it.
type Recommendation struct {
	ID        int64     `json:"id"`
	Query     string    `json:"query"`
	Result    DataQuery `json:"result"`
	Vec       []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type AccessToken struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}
