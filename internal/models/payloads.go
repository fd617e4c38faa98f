package models

// These structs define the JSON bodies exchanged with the booking front-end.

// ErrorResponse is the uniform body written for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FormField describes one input of the booking form.
type FormField struct {
	Name      string `json:"name"`
	FieldType string `json:"field_type"`
	Required  bool   `json:"required"`
}

// FormConfigResponse is the output of the form_config endpoint.
type FormConfigResponse struct {
	Queues     int         `json:"queues"`
	QueueSlots int         `json:"queue_slots"`
	DaysRange  int         `json:"days_range"`
	Fields     []FormField `json:"fields"`
}

// HealthResponse is the output of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
