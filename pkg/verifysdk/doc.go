/*
Package verifysdk is the Go client for the stepauth verification service.

# Client

A Client keeps the service's cookies in a jar, so the calls of one ceremony
must go through the same Client:

	c := verifysdk.NewClient("http://localhost:8080")

	res, err := c.Login(ctx, "alice", "secret")   // code delivered out of band
	res, err = c.Verify(ctx, "123456")            // session cookie issued
	me, err := c.Me(ctx)
	err = c.Logout(ctx)

Every call returns either a Result, an *APIError when the service answered
with success=false, or another error when the service could not be reached
or answered with something that is not the service's JSON envelope.

# Flow adapter

FlowService wraps a Client as an authflow.AuthService, turning *APIError
into a rejected authflow.Outcome and everything else into a transport
failure:

	ctl := authflow.New(verifysdk.NewFlowService(c))
*/
package verifysdk
