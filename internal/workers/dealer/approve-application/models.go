package approveapplication

type Input struct {
	ApplicationID string `json:"applicationId"`
	ReviewerEmail string `json:"reviewerEmail"`
}

type Output struct {
	Approved    bool   `json:"approved"`
	DealerID    string `json:"dealerId"`
	DealerEmail string `json:"dealerEmail"`
	Message     string `json:"message"`
}
