package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/storefront/domain"
)

// AuthClient covers OTP login, the user profile and saved addresses. All of
// them live behind the auth_user service.
type AuthClient struct {
	*Client
}

func NewAuthClient(opts Options) *AuthClient {
	if opts.Service == "" {
		opts.Service = "auth"
	}
	return &AuthClient{Client: NewClient(opts)}
}

type sendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	IsResend    bool   `json:"isResend"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

type registerResponse struct {
	AccessToken string       `json:"accesstoken"`
	User        *domain.User `json:"user"`
}

func (c *AuthClient) SendOTP(ctx context.Context, phone string, isResend bool) error {
	_, err := c.do(ctx, call{
		op:     "send_otp",
		method: http.MethodPost,
		path:   "/auth_user/auth/send_otp",
		body:   sendOTPRequest{PhoneNumber: phone, IsResend: isResend},
		public: true,
	})
	return err
}

func (c *AuthClient) VerifyOTP(ctx context.Context, phone, otp string) (*domain.AuthResult, error) {
	var result domain.AuthResult
	_, err := c.do(ctx, call{
		op:     "verify_otp",
		method: http.MethodPost,
		path:   "/auth_user/auth/verify_otp",
		body:   verifyOTPRequest{PhoneNumber: phone, OTP: otp},
		out:    &result,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, &domain.ServiceError{Service: c.service, Status: http.StatusOK, Message: "Failed to verify OTP"}
	}
	return &result, nil
}

func (c *AuthClient) Profile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if _, err := c.do(ctx, call{op: "profile", method: http.MethodGet, path: "/auth_user/user/getprofile", out: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// Register completes the profile of a new user. The service issues a new
// token, which replaces the one obtained from OTP verification.
func (c *AuthClient) Register(ctx context.Context, reg domain.Registration) (string, *domain.User, error) {
	var resp registerResponse
	_, err := c.do(ctx, call{
		op:     "register",
		method: http.MethodPost,
		path:   "/auth_user/user/register",
		body:   reg,
		out:    &resp,
	})
	if err != nil {
		return "", nil, err
	}
	return resp.AccessToken, resp.User, nil
}

func (c *AuthClient) UpdateProfile(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	var user domain.User
	_, err := c.do(ctx, call{
		op:     "update_profile",
		method: http.MethodPut,
		path:   "/auth_user/user/update_profile",
		body:   reg,
		out:    &user,
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *AuthClient) ListAddresses(ctx context.Context) ([]domain.Address, error) {
	var addresses []domain.Address
	if _, err := c.do(ctx, call{op: "list_addresses", method: http.MethodGet, path: "/auth_user/address", out: &addresses}); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (c *AuthClient) AddAddress(ctx context.Context, addr domain.Address) (*domain.Address, error) {
	var created domain.Address
	_, err := c.do(ctx, call{op: "add_address", method: http.MethodPost, path: "/auth_user/address", body: addr, out: &created})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *AuthClient) UpdateAddress(ctx context.Context, addr domain.Address) (*domain.Address, error) {
	var updated domain.Address
	_, err := c.do(ctx, call{
		op:     "update_address",
		method: http.MethodPut,
		path:   "/auth_user/address/" + url.PathEscape(addr.ID),
		body:   addr,
		out:    &updated,
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *AuthClient) DeleteAddress(ctx context.Context, id string) error {
	_, err := c.do(ctx, call{op: "delete_address", method: http.MethodDelete, path: "/auth_user/address/" + url.PathEscape(id)})
	return err
}

// SetDefaultAddress is a single call; the service clears the previous
// default in the same operation.
func (c *AuthClient) SetDefaultAddress(ctx context.Context, id string) error {
	_, err := c.do(ctx, call{
		op:     "set_default_address",
		method: http.MethodPatch,
		path:   "/auth_user/address/" + url.PathEscape(id) + "/default",
	})
	return err
}
