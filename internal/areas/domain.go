package areas

import (
	"sort"
	"time"
)

// AreaStatus enumerates area lifecycle states. Areas are deleted logically.
type AreaStatus string

const (
	AreaStatusActive   AreaStatus = "ACTIVE"
	AreaStatusInactive AreaStatus = "INACTIVE"
)

// ApproverSlot is one entry in an area's ordered approval chain. Order values
// are stable identifiers: removing an approver never renumbers the rest, so
// gaps are normal.
type ApproverSlot struct {
	Order      int   `json:"order"`
	ApproverID int64 `json:"approver_id"`
}

// Chain is an area's approver list ordered ascending by Order.
type Chain []ApproverSlot

// Area is an organizational routing unit owning an approval chain.
type Area struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CompanyID int64      `json:"company_id"`
	Status    AreaStatus `json:"status"`
	Approvers Chain      `json:"approvers"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Sorted returns the chain ordered ascending by order value.
func (c Chain) Sorted() Chain {
	out := make(Chain, len(c))
	copy(out, c)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Contains reports whether a user already appears anywhere in the chain.
func (c Chain) Contains(userID int64) bool {
	for _, slot := range c {
		if slot.ApproverID == userID {
			return true
		}
	}
	return false
}

// FirstOrder returns the smallest order value in the chain.
func (c Chain) FirstOrder() (int, bool) {
	if len(c) == 0 {
		return 0, false
	}
	first := c[0].Order
	for _, slot := range c[1:] {
		if slot.Order < first {
			first = slot.Order
		}
	}
	return first, true
}

// NextOrder returns the smallest order value strictly greater than after.
// Advancing always moves past a whole order value, so duplicate orders hand
// off together.
func (c Chain) NextOrder(after int) (int, bool) {
	found := false
	next := 0
	for _, slot := range c {
		if slot.Order <= after {
			continue
		}
		if !found || slot.Order < next {
			next = slot.Order
			found = true
		}
	}
	return next, found
}

// EntitledAt reports whether the user holds any slot at the given order.
// All entries sharing an order value are equally entitled to act.
func (c Chain) EntitledAt(order int, userID int64) bool {
	for _, slot := range c {
		if slot.Order == order && slot.ApproverID == userID {
			return true
		}
	}
	return false
}

// NextFreeOrder computes the order to assign to a newly added approver:
// max(existing)+1, or 0 for an empty chain.
func (c Chain) NextFreeOrder() int {
	if len(c) == 0 {
		return 0
	}
	max := c[0].Order
	for _, slot := range c[1:] {
		if slot.Order > max {
			max = slot.Order
		}
	}
	return max + 1
}
