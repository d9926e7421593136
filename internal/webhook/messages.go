package webhook

// DiscordMessage is the body of a Discord execute-webhook call.
type DiscordMessage struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// SlackMessage is a Slack incoming-webhook body built from blocks.
type SlackMessage struct {
	Blocks []SlackBlock `json:"blocks"`
}

type SlackBlock struct {
	Type string     `json:"type"`
	Text *SlackText `json:"text,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Section returns a mrkdwn section block.
func Section(text string) SlackBlock {
	return SlackBlock{Type: "section", Text: &SlackText{Type: "mrkdwn", Text: text}}
}

// Divider returns a divider block.
func Divider() SlackBlock {
	return SlackBlock{Type: "divider"}
}

// TitledMessage is a title section, a divider and a details section.
func TitledMessage(title, details string) SlackMessage {
	return SlackMessage{Blocks: []SlackBlock{Section(title), Divider(), Section(details)}}
}
