/*
Package resilience provides the circuit breaker guarding outbound page traffic.

A Breaker is closed while calls succeed, opens when Settings.Trip says the
failure streak is too long, and after the cooldown lets a limited number of
probe calls through before closing again:

	Closed --[trip]-> Open --[cooldown]-> Half-Open --[probes succeed]-> Closed
	                                         |
	                                     [failure]
	                                         v
	                                        Open

Group keeps one breaker per host so a failing file server does not block
downloads from another origin.

	group := resilience.NewGroup(resilience.Settings{Cooldown: 30 * time.Second})
	err := group.Get(u.Host).Do(ctx, func(ctx context.Context) error {
		return fetch(ctx, u)
	})
*/
package resilience
