package models

import (
	"time"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/signing"
)

// These structs define the JSON payloads exchanged with the editor and with
// the delivery workflow.

// SignRequest is the body of POST /sign-pdf. Images are raw base64 or
// data URIs.
type SignRequest struct {
	PDFID          string             `json:"pdfId"`
	SignatureImage string             `json:"signatureImage"`
	FieldImages    map[string]string  `json:"fieldImages,omitempty"`
	Fields         []signing.RawField `json:"fields"`
	Pages          []PageGeometry     `json:"pages,omitempty"`
}

// PageGeometry is a caller-supplied page size in points.
type PageGeometry struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AuditSummary is the tamper-evidence part of a signing response.
type AuditSummary struct {
	OriginalHash string `json:"originalHash"`
	FinalHash    string `json:"finalHash"`
	Algorithm    string `json:"algorithm"`
}

// SignResponse is returned on success.
type SignResponse struct {
	Status    string            `json:"status"`
	SignedPDF string            `json:"signedPdf"`
	Audit     AuditSummary      `json:"audit"`
	SignedURI string            `json:"signedUri,omitempty"`
	Warnings  []signing.Warning `json:"warnings,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Status  string `json:"status"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// VerifyResponse reports whether a document matches a recorded signing.
type VerifyResponse struct {
	Verified  bool         `json:"verified"`
	Hash      string       `json:"hash"`
	Algorithm string       `json:"algorithm"`
	Record    *AuditRecord `json:"record,omitempty"`
}

// AuditRecord is the public view of a stored audit entry.
type AuditRecord struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId,omitempty"`
	OriginalHash string    `json:"originalHash"`
	FinalHash    string    `json:"finalHash"`
	Algorithm    string    `json:"algorithm"`
	FieldCount   int       `json:"fieldCount"`
	SignedURI    string    `json:"signedUri,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DeliveryPayload is the argument passed to the delivery workflow.
type DeliveryPayload struct {
	DocumentID string `json:"documentId"`
	FinalHash  string `json:"finalHash"`
	SignedURI  string `json:"signedUri,omitempty"`
}
