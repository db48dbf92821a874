package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

const (
	OrderStatusPending    = "PENDING"
	OrderStatusPaid       = "PAID"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
	OrderStatusRefunded   = "REFUNDED"
)

var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

func IsOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

const (
	PayoutStatusPending    = "PENDING"
	PayoutStatusProcessing = "PROCESSING"
	PayoutStatusCompleted  = "COMPLETED"
	PayoutStatusRejected   = "REJECTED"
)

// ActivePayoutStatuses are the states that block a new payout request.
var ActivePayoutStatuses = []string{PayoutStatusPending, PayoutStatusProcessing}

// Notification types
const (
	NotifPayoutRequested = "PAYOUT_REQUESTED"
	NotifPayoutCompleted = "PAYOUT_COMPLETED"
	NotifPayoutRejected  = "PAYOUT_REJECTED"
	NotifReferralEarning = "REFERRAL_EARNING"
)

// System setting keys
const (
	SettingMinPayoutAmount           = "min_payout_amount"
	SettingDefaultReferralPercentage = "default_referral_percentage"
)
