package rejectapplication

type Input struct {
	ApplicationID string `json:"applicationId"`
	ReviewerEmail string `json:"reviewerEmail"`
	Reason        string `json:"reason,omitempty"`
}

type Output struct {
	Rejected bool   `json:"rejected"`
	Message  string `json:"message"`
}
