package verifysdk

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/stepauth/pkg/authflow"
)

// FlowService adapts a Client to authflow.AuthService.
type FlowService struct {
	client *Client
}

var _ authflow.AuthService = (*FlowService)(nil)

func NewFlowService(c *Client) *FlowService {
	return &FlowService{client: c}
}

func (f *FlowService) Login(ctx context.Context, username, password string) (authflow.Outcome, error) {
	return outcome(f.client.Login(ctx, username, password))
}

func (f *FlowService) Verify(ctx context.Context, code string) (authflow.Outcome, error) {
	return outcome(f.client.Verify(ctx, code))
}

func (f *FlowService) Resend(ctx context.Context) (authflow.Outcome, error) {
	return outcome(f.client.Resend(ctx))
}

func (f *FlowService) Logout(ctx context.Context) error {
	return f.client.Logout(ctx)
}

func outcome(res *Result, err error) (authflow.Outcome, error) {
	var apiErr *APIError
	switch {
	case err == nil:
		return authflow.Outcome{OK: true, Message: res.Message}, nil
	case errors.As(err, &apiErr):
		return authflow.Outcome{Message: apiErr.Message}, nil
	default:
		return authflow.Outcome{}, err
	}
}
