// Package vcider provides a client library for the vCider network
// management API.
//
// The Client discovers the server's URI layout and query conventions at
// construction time and exposes nodes, networks and ports as lazily-fetched
// local objects:
//
//	client, err := vcider.New(ctx, "https://my.vcider.com/api/", apiID, apiKey)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	nodes, err := client.GetAllNodes(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for id, node := range nodes {
//		name, _ := node.Name(ctx)
//		fmt.Println(id, name)
//	}
//
// Requests are signed with an HMAC over the method, path, query, timestamp
// and body; when the server rejects a request because the client clock has
// drifted too far, the client resynchronizes against the server time and
// retries once. The low-level signing client is available through
// Client.API for callers that want to follow server links manually.
package vcider
