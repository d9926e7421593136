package feedback

// Atlassian document format nodes used in the issue description.
type adfDoc struct {
	Type    string    `json:"type"`
	Version int       `json:"version"`
	Content []adfNode `json:"content"`
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Marks   []adfMark `json:"marks,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

type adfMark struct {
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

func labelled(label, value string) adfNode {
	return adfNode{
		Type: "paragraph",
		Content: []adfNode{
			{Type: "text", Text: label, Marks: []adfMark{{Type: "strong"}}},
			{Type: "text", Text: value},
		},
	}
}

func link(text, href, title string) adfNode {
	return adfNode{
		Type: "paragraph",
		Content: []adfNode{{
			Type: "text",
			Text: text,
			Marks: []adfMark{{
				Type:  "link",
				Attrs: map[string]string{"href": href, "title": title},
			}},
		}},
	}
}
