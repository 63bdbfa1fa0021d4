package model

import (
	"fmt"
	"strings"
)

// OrderStatus is a stage of the order lifecycle.
//
//	Pending --serve--> Delivering --receive--> Served
//	   \                   |
//	    +----cancel--------+--> Cancelled
//
// Served and Cancelled are terminal.
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderDelivering OrderStatus = "Delivering"
	OrderServed     OrderStatus = "Served"
	OrderCancelled  OrderStatus = "Cancelled"
)

var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderDelivering, OrderCancelled},
	OrderDelivering: {OrderServed, OrderCancelled},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderDelivering, OrderServed, OrderCancelled:
		return true
	}
	return false
}

// Active reports whether an order in this status blocks new placements.
func (s OrderStatus) Active() bool {
	return s == OrderPending || s == OrderDelivering
}

// Terminal reports whether no transition leaves this status.
func (s OrderStatus) Terminal() bool {
	return s == OrderServed || s == OrderCancelled
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseOrderStatus accepts status names case-insensitively. An unknown
// name is an input error, not a domain error.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range []OrderStatus{OrderPending, OrderDelivering, OrderServed, OrderCancelled} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}
