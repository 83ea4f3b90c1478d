// Package pointtype holds the enums shared by the ledger, balance and
// campaign services.
package pointtype

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusReceived Status = "RECEIVED"
	StatusRevoked  Status = "REVOKED"
	StatusExpired  Status = "EXPIRED"
	StatusRedeemed Status = "REDEEMED"
	StatusCanceled Status = "CANCELED"
	StatusRefunded Status = "REFUNDED"
)

// IsDebit reports whether an entry with this status consumes earned points.
func (s Status) IsDebit() bool {
	switch s {
	case StatusRevoked, StatusExpired, StatusRedeemed, StatusCanceled, StatusRefunded:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusReceived || s.IsDebit()
}

type Type string

const (
	TypeBooking  Type = "BOOKING"
	TypeCampaign Type = "CAMPAIGN"
	TypeVoucher  Type = "VOUCHER"
	TypeOrder    Type = "ORDER"
	TypeOffsite  Type = "OFFSITE"
	TypeAdmin    Type = "ADMIN"
)

const (
	ReasonCampaignAction     = "CAMPAIGN_ACTION"
	ReasonCampaignCompletion = "CAMPAIGN_COMPLETION"
	ReasonCampaignReversal   = "CAMPAIGN_COMPLETION_REVERSAL"
	ReasonTransactionRefund  = "TRANSACTION_REFUND"
	ReasonReservation        = "RESERVATION"
	ReasonVoucherClaim       = "VOUCHER_CLAIM"
)
