package domain

type Peer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender Gender `json:"gender,omitempty"`
	Age    int    `json:"age,omitempty"`
}

func (p Peer) DisplayName() string {
	if p.Name == "" {
		return "Anonymous"
	}
	return p.Name
}
