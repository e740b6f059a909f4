package api

import "dealer-portal/internal/common/validation"

var approveSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["applicationId"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1}
	}
}`)

var rejectSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["applicationId"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1},
		"reason": {"type": ["string", "null"], "maxLength": 2000}
	}
}`)

// dealerProfileProperties is shared by invitations and public applications.
const dealerProfileProperties = `
		"email": {"type": "string", "format": "email"},
		"businessName": {"type": "string", "minLength": 1, "maxLength": 200},
		"contactPerson": {"type": "string", "minLength": 1, "maxLength": 200},
		"phone": {"type": "string", "maxLength": 32},
		"whatsapp": {"type": "string", "maxLength": 32},
		"address": {"type": "string", "maxLength": 500},
		"taxId": {"type": "string", "maxLength": 64},
		"businessType": {"type": "string", "maxLength": 100},
		"message": {"type": "string", "maxLength": 2000}`

var inviteSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["email", "businessName", "contactPerson"],
	"properties": {` + dealerProfileProperties + `
	}
}`)

var submitSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["email", "businessName", "contactPerson"],
	"properties": {` + dealerProfileProperties + `
	}
}`)

var identityEventSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"type": "string", "minLength": 1},
		"user": {
			"type": "object",
			"properties": {
				"id": {"type": "string"},
				"email": {"type": "string"},
				"firstName": {"type": "string"},
				"lastName": {"type": "string"}
			}
		}
	}
}`)
