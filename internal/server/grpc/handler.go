package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/analytics"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"google.golang.org/protobuf/types/known/structpb"
)

type userView struct {
	ID        string            `json:"id"`
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	Status    models.UserStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	LastLogin *time.Time        `json:"last_login"`
}

func viewUser(u *models.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, Status: u.Status, CreatedAt: u.CreatedAt, LastLogin: u.LastLogin}
}

type okResponse struct {
	OK bool `json:"ok"`
}

// record appends an event on behalf of the caller; failures are logged only.
func (s *GRPCServer) record(ctx context.Context, ti *models.TokenInfo, kind models.ActionKind, details map[string]any) {
	if _, err := s.events.Append(ctx, ti.UserID, kind, details, models.EventMeta{SessionID: ti.SessionID}); err != nil {
		s.logger.Warn(ctx, "event not recorded", "user_id", ti.UserID, "kind", kind, "error", err)
	}
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registration request", "username", req.Username)

	u, err := s.auth.Register(ctx, services.RegisterRequest{
		Username: req.Username, Email: req.Email, Password: req.Password, FullName: req.FullName,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "username", u.Username, "user_id", u.ID)
	return encode(map[string]any{"user": viewUser(u)})
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Identifier string `json:"identifier"`
		Username   string `json:"username"`
		Password   string `json:"password"`
		IPAddress  string `json:"ip_address"`
		UserAgent  string `json:"user_agent"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Identifier == "" {
		req.Identifier = req.Username
	}

	u, pair, err := s.auth.Login(ctx, req.Identifier, req.Password, clientInfo(ctx, req.IPAddress, req.UserAgent))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(map[string]any{
		"user":          viewUser(u),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"session_id":    pair.SessionID,
		"token_type":    "bearer",
	})
}

func (s *GRPCServer) Logout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Logout(ctx, ti); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(okResponse{true})
}

func (s *GRPCServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	access, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(map[string]any{"access_token": access, "token_type": "bearer"})
}

// RequestPasswordReset answers the same way for known and unknown emails;
// reset_token is empty for the latter.
func (s *GRPCServer) RequestPasswordReset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	token, err := s.auth.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(map[string]any{"reset_token": token})
}

func (s *GRPCServer) ConfirmPasswordReset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		ResetToken  string `json:"reset_token"`
		NewPassword string `json:"new_password"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if err := s.auth.ConfirmPasswordReset(ctx, req.ResetToken, req.NewPassword); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(okResponse{true})
}

func (s *GRPCServer) ChangePassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if err := s.auth.ChangePassword(ctx, ti.UserID, req.OldPassword, req.NewPassword); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(okResponse{true})
}

func (s *GRPCServer) DeleteAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.DeleteAccount(ctx, ti.UserID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(okResponse{true})
}

func (s *GRPCServer) GetProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.identity.GetProfile(ctx, ti.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(p)
}

// Keys a profile patch may not set directly.
var profileReadOnly = []string{"user_id", "updated_at", "assessment_history", "last_assessment_score", "last_assessment_date"}

// UpdateProfile merges the request into the stored profile. add_skills and
// add_interests append to the existing sets.
func (s *GRPCServer) UpdateProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	patch := in.AsMap()
	for _, k := range profileReadOnly {
		delete(patch, k)
	}
	var extra struct {
		AddSkills    []string `json:"add_skills"`
		AddInterests []string `json:"add_interests"`
	}
	if err := decode(in, &extra); err != nil {
		return nil, err
	}
	_, skillsSet := patch["skills"]
	delete(patch, "add_skills")
	delete(patch, "add_interests")

	body, err := json.Marshal(patch)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	p, err := s.identity.UpdateProfile(ctx, ti.UserID, func(p *models.Profile) error {
		if err := json.Unmarshal(body, p); err != nil {
			return fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
		for _, sk := range extra.AddSkills {
			p.AddSkill(sk)
		}
		for _, it := range extra.AddInterests {
			p.AddInterest(it)
		}
		return nil
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	if skillsSet || len(extra.AddSkills) > 0 {
		s.record(ctx, ti, models.ActionSkillUpdate, map[string]any{"skills": p.Skills})
	}
	return encode(p)
}

func (s *GRPCServer) GetPreferences(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.identity.GetPreferences(ctx, ti.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(p)
}

// UpdatePreferences merges the request into the stored preferences.
func (s *GRPCServer) UpdatePreferences(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	patch := in.AsMap()
	delete(patch, "user_id")
	delete(patch, "updated_at")
	if wt, ok := patch["work_type"].(string); ok {
		switch models.WorkType(wt) {
		case models.WorkRemote, models.WorkHybrid, models.WorkOnsite, "":
		default:
			return nil, s.toStatus(ctx, fmt.Errorf("%w: unknown work_type %q", common.ErrValidation, wt))
		}
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	p, err := s.identity.UpdatePreferences(ctx, ti.UserID, func(p *models.Preferences) error {
		if err := json.Unmarshal(body, p); err != nil {
			return fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
		return nil
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	s.record(ctx, ti, models.ActionPreferenceUpdate, map[string]any{"action": "update_preferences", "fields": keys})
	return encode(p)
}

type sessionView struct {
	*models.Session
	Current bool `json:"current"`
}

func (s *GRPCServer) ListSessions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.sessions.ActiveSessions(ctx, ti.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out := make([]sessionView, 0, len(list))
	for _, sess := range list {
		out = append(out, sessionView{Session: sess, Current: sess.ID == ti.SessionID})
	}
	return encode(map[string]any{"sessions": out})
}

// LogEvent appends a behavior event for the caller. An assessment carrying
// a numeric score is also added to the profile history.
func (s *GRPCServer) LogEvent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	var req struct {
		Kind      string         `json:"action_type"`
		Details   map[string]any `json:"details"`
		IPAddress string         `json:"ip_address"`
		UserAgent string         `json:"user_agent"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	kind, err := models.ParseActionKind(req.Kind)
	if err != nil {
		return nil, s.toStatus(ctx, fmt.Errorf("%w: %w", common.ErrValidation, err))
	}

	client := clientInfo(ctx, req.IPAddress, req.UserAgent)
	ev, err := s.events.Append(ctx, ti.UserID, kind, req.Details, models.EventMeta{SessionID: ti.SessionID, Client: &client})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	if score, ok := req.Details["score"].(float64); ok && kind == models.ActionAssessment {
		if _, err := s.identity.RecordAssessment(ctx, ti.UserID, score, req.Details); err != nil {
			return nil, s.toStatus(ctx, err)
		}
	}
	return encode(ev)
}

func (s *GRPCServer) QueryEvents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	var req struct {
		Kind  models.ActionKind `json:"action_type"`
		Since time.Time         `json:"since"`
		Until time.Time         `json:"until"`
		Limit int               `json:"limit"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	evs, err := s.events.Query(ctx, services.EventFilter{
		UserID: ti.UserID, Kind: req.Kind, Since: req.Since, Until: req.Until, Limit: req.Limit,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(map[string]any{"events": evs})
}

type daysRequest struct {
	Days int `json:"days"`
}

func (s *GRPCServer) Journey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	var req daysRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	j, err := s.analytics.Journey(ctx, ti.UserID, req.Days)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(j)
}

// FeatureAdoption covers the caller unless all_users is set.
func (s *GRPCServer) FeatureAdoption(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	var req struct {
		Days     int  `json:"days"`
		AllUsers bool `json:"all_users"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	userID := ti.UserID
	if req.AllUsers {
		userID = ""
	}
	a, err := s.analytics.FeatureAdoption(ctx, userID, req.Days)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(a)
}

func (s *GRPCServer) Segments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req daysRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.analytics.Segments(ctx, req.Days)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(res)
}

func (s *GRPCServer) Funnel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Days  int                    `json:"days"`
		Steps []analytics.FunnelStep `json:"steps"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.analytics.Funnel(ctx, req.Steps, req.Days)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(res)
}

func (s *GRPCServer) Retention(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req daysRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.analytics.Retention(ctx, req.Days)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(res)
}

func (s *GRPCServer) Insights(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.analytics.Insights(ctx, ti.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(res)
}

func (s *GRPCServer) Statistics(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.analytics.UserStatistics(ctx, ti.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(res)
}

func (s *GRPCServer) Export(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ti, err := tokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.export.Export(ctx, ti.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(map[string]any{
		"export":       res.Document,
		"key":          res.Key,
		"download_url": res.URL,
	})
}
