package transport

import (
	"context"
	"time"

	"github.com/example/billboard-server/internal/application"
	"github.com/example/billboard-server/internal/policy"
	"github.com/example/billboard-server/internal/recurrence"
)

// Services groups the application services the protocol is bound to.
type Services struct {
	Auth       *application.AuthService
	Billboards *application.BillboardService
	Schedules  *application.ScheduleService
	Users      *application.UserService
}

// RegisterServices binds every protocol operation to svc.
func RegisterServices(s *Server, svc Services) {
	registerSessionOperations(s, svc.Auth)
	registerBillboardOperations(s, svc.Billboards)
	registerScheduleOperations(s, svc.Schedules)
	registerUserOperations(s, svc.Users)
}

type empty struct{}

func registerSessionOperations(s *Server, auth *application.AuthService) {
	Handle(s, policy.LoginUser, func(ctx context.Context, _ Call, req LoginUserRequest) (any, error) {
		result, err := auth.Login(ctx, application.LoginParams{Username: req.Username, Password: req.Password})
		if err != nil {
			return nil, err
		}
		return LoginUserResponse{
			Token:       result.Session.Token,
			UserID:      result.User.ID,
			ExpiresAt:   formatTime(result.Session.ExpiresAt),
			Permissions: result.User.Permissions,
		}, nil
	})

	Handle(s, policy.LogoutUser, func(ctx context.Context, call Call, _ empty) (any, error) {
		return nil, auth.Logout(ctx, call.Token)
	})

	// The dispatcher has already validated the session.
	Handle(s, policy.CheckSession, func(context.Context, Call, empty) (any, error) {
		return nil, nil
	})
}

func registerBillboardOperations(s *Server, billboards *application.BillboardService) {
	Handle(s, policy.ListBillboards, func(ctx context.Context, _ Call, _ empty) (any, error) {
		list, err := billboards.ListBillboards(ctx)
		if err != nil {
			return nil, err
		}
		response := ListBillboardsResponse{Billboards: make([]BillboardSummary, len(list))}
		for i, billboard := range list {
			response.Billboards[i] = BillboardSummary{
				BillboardID:   billboard.ID,
				Name:          billboard.Name,
				OwnerID:       billboard.OwnerID,
				OwnerUsername: billboard.OwnerUsername,
			}
		}
		return response, nil
	})

	Handle(s, policy.CreateBillboard, func(ctx context.Context, call Call, req CreateBillboardRequest) (any, error) {
		billboard, err := billboards.CreateBillboard(ctx, application.CreateBillboardParams{
			Principal: call.Principal,
			Name:      req.Name,
			Content:   []byte(req.Content),
		})
		if err != nil {
			return nil, err
		}
		return BillboardIDResponse{BillboardID: billboard.ID}, nil
	})

	Handle(s, policy.UpdateBillboard, func(ctx context.Context, call Call, req UpdateBillboardRequest) (any, error) {
		_, err := billboards.UpdateBillboard(ctx, application.UpdateBillboardParams{
			Principal:   call.Principal,
			BillboardID: req.BillboardID,
			Name:        req.Name,
			Content:     []byte(req.Content),
		})
		return nil, err
	})

	Handle(s, policy.DeleteBillboard, func(ctx context.Context, call Call, req BillboardRef) (any, error) {
		return nil, billboards.DeleteBillboard(ctx, call.Principal, req.BillboardID)
	})

	Handle(s, policy.BillboardNameExists, func(ctx context.Context, call Call, req BillboardNameRef) (any, error) {
		exists, err := billboards.BillboardNameExists(ctx, call.Principal, req.Name)
		if err != nil {
			return nil, err
		}
		return ExistsResponse{Exists: exists}, nil
	})

	Handle(s, policy.GetBillboardData, func(ctx context.Context, _ Call, req BillboardRef) (any, error) {
		billboard, err := billboards.GetBillboard(ctx, req.BillboardID)
		if err != nil {
			return nil, err
		}
		return BillboardDataResponse{
			BillboardID:   billboard.ID,
			Name:          billboard.Name,
			OwnerUsername: billboard.OwnerUsername,
			Content:       string(billboard.Content),
		}, nil
	})

	Handle(s, policy.GetBillboardName, func(ctx context.Context, _ Call, req BillboardRef) (any, error) {
		name, err := billboards.GetBillboardName(ctx, req.BillboardID)
		if err != nil {
			return nil, err
		}
		return BillboardNameResponse{Name: name}, nil
	})

	Handle(s, policy.GetBillboardID, func(ctx context.Context, _ Call, req BillboardNameRef) (any, error) {
		id, err := billboards.GetBillboardID(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		return BillboardIDResponse{BillboardID: id}, nil
	})

	Handle(s, policy.GetBillboardCreatorName, func(ctx context.Context, _ Call, req BillboardRef) (any, error) {
		username, err := billboards.GetBillboardCreatorName(ctx, req.BillboardID)
		if err != nil {
			return nil, err
		}
		return CreatorNameResponse{Username: username}, nil
	})
}

func registerScheduleOperations(s *Server, schedules *application.ScheduleService) {
	Handle(s, policy.AddSchedule, func(ctx context.Context, call Call, req AddScheduleRequest) (any, error) {
		result, err := schedules.AddSchedule(ctx, application.AddScheduleParams{
			Principal:   call.Principal,
			BillboardID: req.BillboardID,
			Definition: recurrence.Definition{
				Day:             req.Day,
				StartMinute:     req.StartMinute,
				DurationMinutes: req.DurationMinutes,
				Repeating:       req.Repeating,
				GapMinutes:      req.GapMinutes,
			},
		})
		if err != nil {
			return nil, err
		}
		return AddScheduleResponse{ScheduleID: result.Schedule.ID, Overridden: result.Overridden}, nil
	})

	Handle(s, policy.DeleteSchedule, func(ctx context.Context, call Call, req ScheduleRef) (any, error) {
		return nil, schedules.DeleteSchedule(ctx, call.Principal, req.ScheduleID)
	})

	Handle(s, policy.GetAllSchedules, func(ctx context.Context, call Call, _ empty) (any, error) {
		list, err := schedules.ListSchedules(ctx, call.Principal)
		if err != nil {
			return nil, err
		}
		return toSchedulesResponse(list), nil
	})

	Handle(s, policy.GetBillboardSchedule, func(ctx context.Context, call Call, req BillboardRef) (any, error) {
		list, err := schedules.ListBillboardSchedules(ctx, call.Principal, req.BillboardID)
		if err != nil {
			return nil, err
		}
		return toSchedulesResponse(list), nil
	})

	Handle(s, policy.GetCurrentBillboard, func(ctx context.Context, _ Call, _ empty) (any, error) {
		current, err := schedules.CurrentBillboard(ctx)
		if err != nil {
			return nil, err
		}
		s.metrics.CurrentBillboardServed(current.Fallback)
		return CurrentBillboardResponse{
			BillboardID: current.BillboardID,
			ScheduleID:  current.ScheduleID,
			Name:        current.Name,
			Content:     string(current.Content),
			Fallback:    current.Fallback,
		}, nil
	})
}

func registerUserOperations(s *Server, users *application.UserService) {
	Handle(s, policy.GetUsernames, func(ctx context.Context, call Call, _ empty) (any, error) {
		list, err := users.ListUsers(ctx, call.Principal)
		if err != nil {
			return nil, err
		}
		response := UsernamesResponse{Users: make(map[int64]string, len(list))}
		for _, user := range list {
			response.Users[user.ID] = user.Username
		}
		return response, nil
	})

	Handle(s, policy.GetUserData, func(ctx context.Context, call Call, req UserRef) (any, error) {
		user, err := users.GetUser(ctx, call.Principal, req.UserID)
		if err != nil {
			return nil, err
		}
		return UserDataResponse{
			UserID:      user.ID,
			Username:    user.Username,
			Permissions: user.Permissions,
			CreatedAt:   formatTime(user.CreatedAt),
		}, nil
	})

	Handle(s, policy.GetUserID, func(ctx context.Context, call Call, req UsernameRef) (any, error) {
		id, err := users.GetUserID(ctx, call.Principal, req.Username)
		if err != nil {
			return nil, err
		}
		return UserIDResponse{UserID: id}, nil
	})

	Handle(s, policy.AddUser, func(ctx context.Context, call Call, req AddUserRequest) (any, error) {
		user, err := users.AddUser(ctx, application.AddUserParams{
			Principal:   call.Principal,
			Username:    req.Username,
			Password:    req.Password,
			Permissions: req.Permissions,
		})
		if err != nil {
			return nil, err
		}
		return UserIDResponse{UserID: user.ID}, nil
	})

	Handle(s, policy.DeleteUser, func(ctx context.Context, call Call, req UserRef) (any, error) {
		return nil, users.DeleteUser(ctx, call.Principal, req.UserID)
	})

	Handle(s, policy.GetOwnPermissions, func(ctx context.Context, call Call, _ empty) (any, error) {
		permissions, err := users.GetOwnPermissions(ctx, call.Principal)
		if err != nil {
			return nil, err
		}
		return PermissionsResponse{Permissions: permissions}, nil
	})

	Handle(s, policy.GetPermissions, func(ctx context.Context, call Call, req UserRef) (any, error) {
		permissions, err := users.GetPermissions(ctx, call.Principal, req.UserID)
		if err != nil {
			return nil, err
		}
		return PermissionsResponse{Permissions: permissions}, nil
	})

	Handle(s, policy.UpdateUserPermissions, func(ctx context.Context, call Call, req UpdatePermissionsRequest) (any, error) {
		applied, err := users.UpdatePermissions(ctx, application.UpdatePermissionsParams{
			Principal:   call.Principal,
			UserID:      req.UserID,
			Permissions: req.Permissions,
		})
		if err != nil {
			return nil, err
		}
		return PermissionsResponse{Permissions: applied}, nil
	})

	Handle(s, policy.UpdatePassword, func(ctx context.Context, call Call, req UpdatePasswordRequest) (any, error) {
		return nil, users.UpdatePassword(ctx, application.UpdatePasswordParams{
			Principal: call.Principal,
			UserID:    req.UserID,
			Password:  req.Password,
		})
	})
}

func toSchedulesResponse(list []application.Schedule) SchedulesResponse {
	response := SchedulesResponse{Schedules: make([]ScheduleInfo, len(list))}
	for i, schedule := range list {
		info := ScheduleInfo{
			ScheduleID:      schedule.ID,
			BillboardID:     schedule.BillboardID,
			BillboardName:   schedule.BillboardName,
			CreatorID:       schedule.CreatorID,
			CreatorUsername: schedule.CreatorUsername,
			Day:             schedule.Definition.Day,
			StartMinute:     schedule.Definition.StartMinute,
			DurationMinutes: schedule.Definition.DurationMinutes,
			Repeating:       schedule.Definition.Repeating,
			GapMinutes:      schedule.Definition.GapMinutes,
			CreatedAt:       formatTime(schedule.CreatedAt),
			Times:           make([]ScheduleTimeInfo, len(schedule.Times)),
		}
		for j, st := range schedule.Times {
			info.Times[j] = ScheduleTimeInfo{ID: st.ID, Day: st.Day, Start: st.Start, End: st.End}
		}
		response.Schedules[i] = info
	}
	return response
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
