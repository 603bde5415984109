package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/example/billboard-server/internal/codec"
	"github.com/example/billboard-server/internal/policy"
)

const (
	dialTimeout = 5 * time.Second
	// responseReadTimeout covers the server's read and write timeouts plus
	// handler execution.
	responseReadTimeout = 45 * time.Second
	maxResponseSize     = 1024 * 1024
)

// RemoteError is returned when the server answers with ok=false.
type RemoteError struct {
	Operation policy.Operation
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Client issues protocol requests. Every call opens a new connection.
type Client struct {
	addr  string
	token string
}

// NewClient returns a client for the server at addr.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// SetToken sets the session token attached to subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current session token.
func (c *Client) Token() string { return c.token }

// Call sends op with payload and decodes the response data into result.
// Either payload or result may be nil. Server-side failures are returned as
// *RemoteError; connection and encoding failures are returned as plain errors.
func (c *Client) Call(ctx context.Context, op policy.Operation, payload, result any) error {
	request := Request{Operation: op, Token: c.token}
	if payload != nil {
		raw, err := codec.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", op, err)
		}
		request.Payload = raw
	}

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %s on %s: %w", op, c.addr, err)
	}
	if !response.OK {
		return &RemoteError{Operation: op, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding %s response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, request Request) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.CloseWrite()
	}

	if _, ok := ctx.Deadline(); !ok {
		_ = conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	}
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (LoginUserResponse, error) {
	var response LoginUserResponse
	err := c.Call(ctx, policy.LoginUser, LoginUserRequest{Username: username, Password: password}, &response)
	if err == nil {
		c.token = response.Token
	}
	return response, err
}

// Logout invalidates the client's session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.Call(ctx, policy.LogoutUser, nil, nil)
	if err == nil {
		c.token = ""
	}
	return err
}

func (c *Client) CheckSession(ctx context.Context) error {
	return c.Call(ctx, policy.CheckSession, nil, nil)
}

func (c *Client) ListBillboards(ctx context.Context) ([]BillboardSummary, error) {
	var response ListBillboardsResponse
	err := c.Call(ctx, policy.ListBillboards, nil, &response)
	return response.Billboards, err
}

func (c *Client) CreateBillboard(ctx context.Context, name, content string) (int64, error) {
	var response BillboardIDResponse
	err := c.Call(ctx, policy.CreateBillboard, CreateBillboardRequest{Name: name, Content: content}, &response)
	return response.BillboardID, err
}

func (c *Client) UpdateBillboard(ctx context.Context, id int64, name, content string) error {
	return c.Call(ctx, policy.UpdateBillboard, UpdateBillboardRequest{BillboardID: id, Name: name, Content: content}, nil)
}

func (c *Client) DeleteBillboard(ctx context.Context, id int64) error {
	return c.Call(ctx, policy.DeleteBillboard, BillboardRef{BillboardID: id}, nil)
}

func (c *Client) BillboardNameExists(ctx context.Context, name string) (bool, error) {
	var response ExistsResponse
	err := c.Call(ctx, policy.BillboardNameExists, BillboardNameRef{Name: name}, &response)
	return response.Exists, err
}

func (c *Client) GetBillboardData(ctx context.Context, id int64) (BillboardDataResponse, error) {
	var response BillboardDataResponse
	err := c.Call(ctx, policy.GetBillboardData, BillboardRef{BillboardID: id}, &response)
	return response, err
}

func (c *Client) GetBillboardName(ctx context.Context, id int64) (string, error) {
	var response BillboardNameResponse
	err := c.Call(ctx, policy.GetBillboardName, BillboardRef{BillboardID: id}, &response)
	return response.Name, err
}

func (c *Client) GetBillboardID(ctx context.Context, name string) (int64, error) {
	var response BillboardIDResponse
	err := c.Call(ctx, policy.GetBillboardID, BillboardNameRef{Name: name}, &response)
	return response.BillboardID, err
}

func (c *Client) GetBillboardCreatorName(ctx context.Context, id int64) (string, error) {
	var response CreatorNameResponse
	err := c.Call(ctx, policy.GetBillboardCreatorName, BillboardRef{BillboardID: id}, &response)
	return response.Username, err
}

func (c *Client) AddSchedule(ctx context.Context, req AddScheduleRequest) (AddScheduleResponse, error) {
	var response AddScheduleResponse
	err := c.Call(ctx, policy.AddSchedule, req, &response)
	return response, err
}

func (c *Client) DeleteSchedule(ctx context.Context, id int64) error {
	return c.Call(ctx, policy.DeleteSchedule, ScheduleRef{ScheduleID: id}, nil)
}

func (c *Client) GetAllSchedules(ctx context.Context) ([]ScheduleInfo, error) {
	var response SchedulesResponse
	err := c.Call(ctx, policy.GetAllSchedules, nil, &response)
	return response.Schedules, err
}

func (c *Client) GetBillboardSchedule(ctx context.Context, billboardID int64) ([]ScheduleInfo, error) {
	var response SchedulesResponse
	err := c.Call(ctx, policy.GetBillboardSchedule, BillboardRef{BillboardID: billboardID}, &response)
	return response.Schedules, err
}

func (c *Client) GetCurrentBillboard(ctx context.Context) (CurrentBillboardResponse, error) {
	var response CurrentBillboardResponse
	err := c.Call(ctx, policy.GetCurrentBillboard, nil, &response)
	return response, err
}

func (c *Client) GetUsernames(ctx context.Context) (map[int64]string, error) {
	var response UsernamesResponse
	err := c.Call(ctx, policy.GetUsernames, nil, &response)
	return response.Users, err
}

func (c *Client) GetUserData(ctx context.Context, id int64) (UserDataResponse, error) {
	var response UserDataResponse
	err := c.Call(ctx, policy.GetUserData, UserRef{UserID: id}, &response)
	return response, err
}

func (c *Client) GetUserID(ctx context.Context, username string) (int64, error) {
	var response UserIDResponse
	err := c.Call(ctx, policy.GetUserID, UsernameRef{Username: username}, &response)
	return response.UserID, err
}

func (c *Client) AddUser(ctx context.Context, username, password string, permissions policy.Permissions) (int64, error) {
	var response UserIDResponse
	err := c.Call(ctx, policy.AddUser, AddUserRequest{Username: username, Password: password, Permissions: permissions}, &response)
	return response.UserID, err
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.Call(ctx, policy.DeleteUser, UserRef{UserID: id}, nil)
}

func (c *Client) GetOwnPermissions(ctx context.Context) (policy.Permissions, error) {
	var response PermissionsResponse
	err := c.Call(ctx, policy.GetOwnPermissions, nil, &response)
	return response.Permissions, err
}

func (c *Client) GetPermissions(ctx context.Context, id int64) (policy.Permissions, error) {
	var response PermissionsResponse
	err := c.Call(ctx, policy.GetPermissions, UserRef{UserID: id}, &response)
	return response.Permissions, err
}

// UpdateUserPermissions returns the permissions actually stored, which may
// differ from the request when a user edits their own flags.
func (c *Client) UpdateUserPermissions(ctx context.Context, id int64, permissions policy.Permissions) (policy.Permissions, error) {
	var response PermissionsResponse
	err := c.Call(ctx, policy.UpdateUserPermissions, UpdatePermissionsRequest{UserID: id, Permissions: permissions}, &response)
	return response.Permissions, err
}

func (c *Client) UpdatePassword(ctx context.Context, id int64, password string) error {
	return c.Call(ctx, policy.UpdatePassword, UpdatePasswordRequest{UserID: id, Password: password}, nil)
}
