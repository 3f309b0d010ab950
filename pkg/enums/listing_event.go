package enums

// ListingEventType names lifecycle notifications published for delivery.
type ListingEventType string

const (
	ListingEventCreated   ListingEventType = "listing.created"
	ListingEventModerated ListingEventType = "listing.moderated"
	ListingEventRenewed   ListingEventType = "listing.renewed"
	ListingEventPremium   ListingEventType = "listing.premium_activated"
)
