// Package broadcast fans run events out to live subscribers.
//
// A Hub keeps the subscribers of each run id. Deliver offers an event to
// every subscriber of the run and reports how many attempts failed; failed
// subscribers are pruned after the pass so one dead connection never blocks
// the others. A Hub satisfies flowrun.Broadcaster:
//
//	hub := broadcast.NewHub(broadcast.Config{})
//	engine := flowrun.NewEngine(flowrun.WithBroadcaster(hub))
//
//	sub := broadcast.NewChannelSubscriber(64)
//	reg, _ := hub.Register(runID, sub)
//	defer reg.Unregister()
//	for ev := range sub.Events() {
//	    fmt.Println(ev.Type, ev.Node)
//	}
package broadcast
