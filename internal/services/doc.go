// Package services defines what a service is at registration time.
//
// A Definition names the service, lists its Dependencies, sets its initial
// Mode and carries the Behavior that starts and stops it. The registry in
// internal/orchestrator owns everything else: state, scheduling and the
// values handed between services.
//
// Behaviors start synchronously by returning from Start, or asynchronously
// by calling StartContext.Asynchronous and finishing later with Complete or
// Fail:
//
//	services.Funcs{
//		StartFunc: func(ctx context.Context, sc *services.StartContext) error {
//			sc.Asynchronous()
//			go func() {
//				if err := connect(ctx); err != nil {
//					_ = sc.Fail(err)
//					return
//				}
//				_ = sc.Complete()
//			}()
//			return nil
//		},
//	}
//
// Funcs, Marker and Constant cover the common cases without a named type.
package services
