// Package client implements an envelope-aware HTTP client on top of
// [net/http].
//
// Backends answer with a JSON envelope such as
//
//	{"code": 200, "data": {...}, "message": "ok"}
//
// and the client classifies each response by its code: success codes are
// returned (optionally unwrapped to the data field), logout codes trigger
// the logout callback, ignorable codes pass through and everything else
// becomes an [*HTTPError].
//
// # Building a Client
//
// Use [Build] with functional options. Transport concerns are [Option]
// values; envelope behavior is a [ConfigOption], applied at build time via
// [WithConfig] or later via [Client.Configure]:
//
//	c, err := client.Build(
//		client.WithUserAgent("myapp/1.0"),
//		client.WithConfig(
//			client.WithBaseURL("https://api.example.com"),
//			client.WithTimeout(10*time.Second),
//			client.WithOnLogout(func(ctx context.Context, err *client.HTTPError) { ... }),
//		),
//	)
//
// # Making Requests
//
//	res, err := c.Get(ctx, "/users", client.WithQuery(map[string]any{"page": 1}))
//	var users []User
//	err = res.Decode(&users)
//
// A JSON payload on GET is folded into the query string; on other methods
// it is sent as the body.
//
// # Binary Responses
//
// Responses whose Content-Type matches [Config.BlobContentTypes] are
// returned as a [Blob] and can be written to disk with
// [Client.DownloadFile].
package client
