// Package events fans registry transitions out to channel subscribers.
//
// The orchestrator publishes every transition of every service to its Bus
// after the per-service listeners ran. Subscribers that fall behind miss
// events instead of slowing the registry down; Dropped counts how many were
// missed.
//
//	sub := orch.Subscribe(128)
//	defer sub.Cancel()
//	for t := range sub.C {
//		fmt.Println(t)
//	}
package events
