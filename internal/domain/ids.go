package domain

// BrowseChannel is the channel under the namespace holding sweep state
const BrowseChannel = "browse"

// BrowseIDs are the state ids a sweep publishes to
type BrowseIDs struct {
	Channel     string
	Running     string
	Progress    string
	Status      string
	Result      string
	Interface   string
	RangeStart  string
	RangeLength string
}

// NewBrowseIDs builds the browse state ids for namespace
func NewBrowseIDs(namespace string) BrowseIDs {
	ch := namespace + "." + BrowseChannel
	return BrowseIDs{
		Channel:     ch,
		Running:     ch + ".running",
		Progress:    ch + ".progress",
		Status:      ch + ".status",
		Result:      ch + ".result",
		Interface:   ch + ".interface",
		RangeStart:  ch + ".rangeStart",
		RangeLength: ch + ".rangeLength",
	}
}
