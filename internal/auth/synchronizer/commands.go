package synchronizer

import (
	"context"

	"calorie/internal/auth/models"
	dErrors "calorie/pkg/domain-errors"
	"calorie/pkg/platform/sentinel"
	"calorie/pkg/requestcontext"
)

// SignUpResult is the outcome of a successful sign-up. Session is nil and
// VerificationPending is true when the provider wants the email confirmed first.
type SignUpResult struct {
	Session             *models.Session
	VerificationPending bool
}

// SignIn authenticates with email and password. On success the store holds
// the new session. A rejected credential leaves the store untouched and
// returns CodeAuthenticationFailed carrying the provider's message.
func (s *Synchronizer) SignIn(ctx context.Context, email, password string) (session *models.Session, err error) {
	defer func() { s.record(opSignIn, err) }()

	session, err = observe(ctx, s, opSignIn, func(ctx context.Context) (*models.Session, error) {
		return s.gateway.SignInWithPassword(ctx, email, password)
	})
	if err != nil {
		s.logger.InfoContext(ctx, "sign in rejected", "error", err)
		return nil, translate(err)
	}
	if session == nil {
		return nil, dErrors.New(dErrors.CodeGateway, "identity provider returned no session")
	}
	if err := s.apply(ctx, session, opSignIn); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "signed in", "user_id", session.User.ID)
	return session.Clone(), nil
}

// SignUp registers a new account with the given profile fields. The profile is
// validated before anything reaches the provider.
func (s *Synchronizer) SignUp(ctx context.Context, email, password string, profile models.Profile) (result SignUpResult, err error) {
	defer func() { s.record(opSignUp, err) }()

	if err := profile.Validate(requestcontext.Now(ctx)); err != nil {
		return SignUpResult{}, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error())
	}

	session, err := observe(ctx, s, opSignUp, func(ctx context.Context) (*models.Session, error) {
		return s.gateway.SignUp(ctx, email, password, profile.Apply(nil))
	})
	if err != nil {
		s.logger.InfoContext(ctx, "sign up rejected", "error", err)
		return SignUpResult{}, translate(err)
	}
	if err := s.apply(ctx, session, opSignUp); err != nil {
		return SignUpResult{}, err
	}
	if session == nil {
		s.logger.InfoContext(ctx, "sign up awaiting email verification")
		return SignUpResult{VerificationPending: true}, nil
	}
	s.logger.InfoContext(ctx, "signed up", "user_id", session.User.ID)
	return SignUpResult{Session: session.Clone()}, nil
}

// SignOut ends the session. Signing out while signed out succeeds. A gateway
// failure leaves the store untouched.
func (s *Synchronizer) SignOut(ctx context.Context) (err error) {
	defer func() { s.record(opSignOut, err) }()

	_, err = observe(ctx, s, opSignOut, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.gateway.SignOut(ctx)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "sign out failed", "error", err)
		return translate(err)
	}
	if err := s.apply(ctx, nil, opSignOut); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "signed out")
	return nil
}

// Refresh re-pulls the session from the gateway. An expired or revoked
// refresh token clears the store and returns CodeSessionExpired.
func (s *Synchronizer) Refresh(ctx context.Context) (session *models.Session, err error) {
	defer func() { s.record(opRefresh, err) }()

	session, err = observe(ctx, s, opRefresh, func(ctx context.Context) (*models.Session, error) {
		return s.gateway.RefreshSession(ctx)
	})
	if err == nil && session == nil {
		err = sentinel.ErrExpired
	}
	if err != nil {
		translated := translate(err)
		if dErrors.HasCode(translated, dErrors.CodeSessionExpired) {
			s.logger.InfoContext(ctx, "session expired on refresh")
			if applyErr := s.apply(ctx, nil, opRefresh); applyErr != nil {
				return nil, applyErr
			}
		} else {
			s.logger.WarnContext(ctx, "session refresh failed", "error", err)
		}
		return nil, translated
	}
	if err := s.apply(ctx, session, opRefresh); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// UpdateProfile merges profile into the signed-in identity's metadata on the
// provider and refreshes so the store reflects the change.
func (s *Synchronizer) UpdateProfile(ctx context.Context, profile models.Profile) (identity *models.Identity, err error) {
	defer func() { s.record(opUpdateProfile, err) }()

	if profile.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no profile fields given")
	}
	if err := profile.Validate(requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error())
	}

	current := s.store.Get()
	if !current.IsAuthenticated() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "sign in to update the profile")
	}

	_, err = observe(ctx, s, opUpdateProfile, func(ctx context.Context) (*models.Identity, error) {
		return s.gateway.UpdateUser(ctx, profile.Apply(current.Identity.Metadata))
	})
	if err != nil {
		s.logger.WarnContext(ctx, "profile update failed", "error", err)
		return nil, translate(err)
	}

	session, err := s.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return &session.User, nil
}
