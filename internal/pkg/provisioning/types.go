package provisioning

import (
	"encoding/json"
	"time"
)

// assignedAtLayout is the timestamp format the provisioning API uses for
// esim.date_assigned.
const assignedAtLayout = "2006-01-02 15:04:05"

// Esim mirrors the optional esim object returned by both endpoints.
// Every field is a pointer: the API omits keys freely and an absent key
// must be stored as NULL, not treated as an error.
type Esim struct {
	APN            *string `json:"apn"`
	Tag            *string `json:"tag"`
	UID            *string `json:"uid"`
	ICCID          *string `json:"iccid"`
	State          *string `json:"state"`
	AutoAPN        *bool   `json:"auto_apn"`
	ManualCode     *string `json:"manual_code"`
	SMDPAddress    *string `json:"smdp_address"`
	DateAssigned   *string `json:"date_assigned"`
	NetworkStatus  *string `json:"network_status"`
	ServiceStatus  *string `json:"service_status"`
	ActivationCode *string `json:"activation_code"`
}

// AssignedAt parses date_assigned into a time, or nil when the field is
// absent or malformed.
func (e *Esim) AssignedAt() *time.Time {
	if e == nil || e.DateAssigned == nil {
		return nil
	}
	t, err := time.Parse(assignedAtLayout, *e.DateAssigned)
	if err != nil {
		return nil
	}
	return &t
}

// Product mirrors the optional product object of the plan-detail endpoint.
type Product struct {
	UID               *string      `json:"uid"`
	Name              *string      `json:"name"`
	DataQuotaMB       *json.Number `json:"data_quota_mb"`
	DataQuotaBytes    *json.Number `json:"data_quota_bytes"`
	ValidityDays      *int         `json:"validity_days"`
	PolicyID          *int         `json:"policy_id"`
	PolicyName        *string      `json:"policy_name"`
	WholesalePriceUSD *float64     `json:"wholesale_price_usd"`
	RRPUSD            *float64     `json:"rrp_usd"`
	RRPEUR            *float64     `json:"rrp_eur"`
	RRPGBP            *float64     `json:"rrp_gbp"`
	RRPCAD            *float64     `json:"rrp_cad"`
	RRPAUD            *float64     `json:"rrp_aud"`
	RRPJPY            *float64     `json:"rrp_jpy"`
	CountriesEnabled  []string     `json:"countries_enabled"`
}

// IssueProfileResponse is the body of the POST issue-profile endpoint.
type IssueProfileResponse struct {
	Esim      *Esim   `json:"esim"`
	RequestID *string `json:"request_id"`
	Status    *string `json:"status"`
	Message   *string `json:"message"`
}

// ProductResponse is the body of the GET plan-detail endpoint. It may
// carry the issued esim object again; only the iccid is used from it.
type ProductResponse struct {
	Product *Product `json:"product"`
	Esim    *Esim    `json:"esim"`
	Status  *string  `json:"status"`
	Message *string  `json:"message"`
}

// QuotaString converts an optional numeric quota into its storage form.
func QuotaString(n *json.Number) *string {
	if n == nil {
		return nil
	}
	s := n.String()
	return &s
}
