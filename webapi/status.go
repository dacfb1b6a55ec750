/*
File Name:  Status.go

Status and origination handlers. Grounded on the teacher's webapi/Status.go
apiStatus handler shape.
*/
package webapi

import (
	"net/http"
)

// handleStatus returns the node's current runtime statistics.
// Request:  GET /status
// Response: 200 with JSON mesh.Statistics
func (api *Instance) handleStatus(w http.ResponseWriter, r *http.Request) {
	encodeJSON(w, api.Node.GetStatistics())
}

type sendSOSRequest struct {
	Content string  `json:"content"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	SOSType string  `json:"sosType"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
}

// handleSendSOS originates a broadcast distress message.
// Request:  POST /send/sos  {content, lat, lng, sosType}
// Response: 200 with JSON {messageId}
func (api *Instance) handleSendSOS(w http.ResponseWriter, r *http.Request) {
	var req sendSOSRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	id, err := api.Node.SendSOS(req.Content, req.Lat, req.Lng, req.SOSType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	encodeJSON(w, sendResponse{MessageID: id.String()})
}

type sendDirectRequest struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// handleSendDirect originates a point-to-point message.
// Request:  POST /send/direct  {recipient, content}
// Response: 200 with JSON {messageId}
func (api *Instance) handleSendDirect(w http.ResponseWriter, r *http.Request) {
	var req sendDirectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Recipient == "" {
		http.Error(w, "recipient is required", http.StatusBadRequest)
		return
	}

	id, err := api.Node.SendDirect(req.Recipient, req.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	encodeJSON(w, sendResponse{MessageID: id.String()})
}
