package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go-elife-client/api"
	"go-elife-client/camera"
	"go-elife-client/certificate"
	"go-elife-client/events"
	"go-elife-client/images"
	"go-elife-client/models"
	"go-elife-client/securestore"
	"go-elife-client/session"
	"go-elife-client/verification"
)

const ERR_NOT_LOGGED_IN = "not logged in, run the login command first"

// ID documents are uploaded near full quality.
var idImageOptions = images.FrameOptions{MaxWidth: 2048, MaxHeight: 2048, Quality: 1}

type App struct {
	config  Config
	client  *api.Client
	session *session.Manager
	out     io.Writer
}

func newApp(config Config, store securestore.Store, out io.Writer) *App {
	opts := []api.Option{api.WithRetryMax(config.Backend.RetryMax)}
	if config.Backend.TimeoutMs > 0 {
		opts = append(opts, api.WithTimeout(millis(config.Backend.TimeoutMs)))
	}
	client := api.New(config.Backend.BaseURL, opts...)

	return &App{
		config:  config,
		client:  client,
		session: session.NewManager(client, store),
		out:     out,
	}
}

func (a *App) dispatch(ctx context.Context, args []string) error {
	command, rest := args[0], args[1:]
	switch command {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "status":
		return a.status(ctx)
	case "accept-terms":
		return a.acceptTerms(ctx)
	case "profile":
		return a.profile(ctx)
	case "notifications":
		return a.notifications(ctx)
	case "history":
		return a.history(ctx)
	case "dashboard":
		return a.dashboard(ctx)
	case "upload-id":
		return a.uploadId(ctx, rest)
	case "verify":
		return a.verify(ctx, rest)
	case "certificate":
		return a.certificate(ctx)
	}
	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

func (a *App) login(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	number := flags.String("number", "", "pensioner number (000-000-0000)")
	password := flags.String("password", "", "password, defaults to $ELIFE_PASSWORD")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("ELIFE_PASSWORD")
	}

	claims, err := a.session.Login(ctx, *number, *password)
	if err != nil {
		if message := api.ServerMessage(err); message != "" {
			return fmt.Errorf("login failed: %s", message)
		}
		return err
	}
	fmt.Fprintf(a.out, "Logged in (user %d)\n", claims.UserID)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) status(ctx context.Context) error {
	terms, err := a.session.TermsAccepted(ctx)
	if err != nil {
		return err
	}

	claims, err := a.session.Claims(ctx)
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		fmt.Fprintln(a.out, "Session: logged out")
	case err != nil:
		return err
	default:
		fmt.Fprintf(a.out, "Session: logged in as user %d until %s\n", claims.UserID, claims.ExpiresAt.Time.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(a.out, "Terms accepted: %t\n", terms)
	return nil
}

func (a *App) acceptTerms(ctx context.Context) error {
	if err := a.session.AcceptTerms(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Terms accepted")
	return nil
}

func (a *App) profile(ctx context.Context) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}
	profile, err := a.client.Profile(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Name:             %s\n", profile.DisplayName())
	fmt.Fprintf(a.out, "Pensioner number: %s\n", profile.PensionerNumber)
	fmt.Fprintf(a.out, "Email:            %s\n", profile.Email)
	if profile.Details.Address != "" {
		fmt.Fprintf(a.out, "Address:          %s\n", profile.Details.Address)
	}
	return nil
}

func (a *App) notifications(ctx context.Context) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}
	notifications, err := a.client.Notifications(ctx, token)
	if err != nil {
		return err
	}
	if len(notifications) == 0 {
		fmt.Fprintln(a.out, "No notifications")
	}
	for _, notification := range notifications {
		marker := " "
		if !notification.IsRead {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s [%s] %s: %s\n", marker, notification.Type, notification.Title, notification.Message)
	}
	return nil
}

func (a *App) history(ctx context.Context) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}
	history, err := a.client.VerificationHistory(ctx, token)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(a.out, "No certificates issued yet")
	}
	for _, issued := range history {
		fmt.Fprintf(a.out, "%s  certificate #%d  %s\n", issued.Quarter, issued.Id, issued.Timestamp)
	}
	return nil
}

func (a *App) dashboard(ctx context.Context) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}
	summary, err := a.client.DashboardSummary(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Pensioner:      %s\n", summary.PensionerName)
	fmt.Fprintf(a.out, "Quarter:        %s (%s)\n", summary.CurrentQuarter, summary.QuarterStatus)
	if summary.DueDate != "" {
		fmt.Fprintf(a.out, "Due date:       %s\n", summary.DueDate)
	}
	fmt.Fprintf(a.out, "Pension amount: %s\n", summary.PensionAmount.StringFixed(2))
	fmt.Fprintf(a.out, "Unread:         %d\n", summary.UnreadNotifications)
	return nil
}

func (a *App) uploadId(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("upload-id", flag.ContinueOnError)
	imagePath := flags.String("image", "", "path of the ID document image")
	if err := flags.Parse(args); err != nil {
		return err
	}

	idImage, err := readIdImage(*imagePath)
	if err != nil {
		return err
	}

	response, err := verification.UploadId(ctx, a.client, a.session, idImage)
	var uploadErr *verification.UploadError
	if errors.As(err, &uploadErr) {
		fmt.Fprintf(a.out, "ID upload rejected: %s\n", uploadErr.Message)
		return nil
	}
	if err != nil {
		return a.explain(err)
	}
	fmt.Fprintf(a.out, "ID accepted (%s), continue with facial verification\n", response.IdType)
	return nil
}

func (a *App) verify(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("verify", flag.ContinueOnError)
	imagePath := flags.String("id-image", "", "path of the ID document image")
	cameraDir := flags.String("camera-dir", a.config.Camera.Dir, "directory whose images act as camera frames")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *cameraDir == "" {
		return errors.New("verify needs a camera directory (--camera-dir or camera.dir)")
	}

	if _, err := a.token(ctx); err != nil {
		return err
	}
	idImage, err := readIdImage(*imagePath)
	if err != nil {
		return err
	}
	cam, err := camera.NewDirCamera(*cameraDir, camera.WithMaxSize(a.config.Camera.MaxWidth, a.config.Camera.MaxHeight))
	if err != nil {
		return err
	}

	bus := events.NewBus(64)
	defer bus.Close()

	progressCtx, stopProgress := context.WithCancel(ctx)
	transitions, err := bus.Subscribe(progressCtx)
	if err != nil {
		stopProgress()
		return err
	}
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for transition := range transitions {
			printTransition(a.out, transition)
		}
	}()

	flow := a.newFlow(cam, bus)
	result, err := flow.Run(ctx, idImage)
	stopProgress()
	<-printed
	if err != nil {
		return a.explain(err)
	}

	printFlowResult(a.out, result)
	return nil
}

func (a *App) certificate(ctx context.Context) error {
	service := certificate.NewService(a.client, a.session)
	issued, err := service.Generate(ctx)
	if err != nil {
		return a.explain(err)
	}
	fmt.Fprintf(a.out, "Life certificate #%d issued for %s\n", issued.Id, issued.Quarter)
	return nil
}

func (a *App) newFlow(cam verification.Camera, notifier verification.Notifier) *ProofOfLifeFlow {
	orchestrator := verification.NewOrchestrator(cam, a.client, a.session, notifier, a.config.Verification.orchestratorConfig())
	return &ProofOfLifeFlow{
		Tokens:           a.session,
		Uploader:         a.client,
		Verification:     orchestrator,
		Certificates:     certificate.NewService(a.client, a.session),
		Profiles:         a.client,
		CountdownSeconds: a.config.Verification.CountdownSeconds,
		OnCountdown: func(remaining int) {
			if remaining > 0 {
				fmt.Fprintf(a.out, "Starting facial verification in %d...\n", remaining)
			}
		},
	}
}

func (a *App) token(ctx context.Context) (string, error) {
	token, err := a.session.Token(ctx)
	if errors.Is(err, session.ErrNotAuthenticated) {
		return "", errors.New(ERR_NOT_LOGGED_IN)
	}
	return token, err
}

// explain turns authentication failures into an instruction for the user.
func (a *App) explain(err error) error {
	if errors.Is(err, session.ErrNotAuthenticated) || api.IsUnauthorized(err) {
		return errors.New(ERR_NOT_LOGGED_IN)
	}
	return err
}

func readIdImage(path string) (models.ImageFile, error) {
	if path == "" {
		return models.ImageFile{}, errors.New("an ID image path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ImageFile{}, fmt.Errorf("failed to read ID image: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".jpg"
	return images.PrepareFrame(name, data, idImageOptions)
}

func printTransition(out io.Writer, transition models.Transition) {
	switch verification.State(transition.State) {
	case verification.StateFaceDetecting:
		fmt.Fprintf(out, "[%s] looking for a face (face: %s)\n", transition.State, transition.Steps[string(verification.StepFaceDetected)])
	case verification.StateCapturing:
		fmt.Fprintf(out, "[%s] %d/%d\n", transition.State, transition.Captured, transition.Total)
	case verification.StateVerifying:
		fmt.Fprintf(out, "[%s] face: %s, deepfake check: %s, identity match: %s\n",
			transition.State,
			transition.Steps[string(verification.StepFaceDetected)],
			transition.Steps[string(verification.StepDeepfakeCheck)],
			transition.Steps[string(verification.StepIdentityMatch)])
	case verification.StateFailure:
		if transition.InfraFailures > 0 {
			fmt.Fprintf(out, "[%s] attempt %d, infrastructure failures %d: %s\n", transition.State, transition.Attempt, transition.InfraFailures, transition.Message)
		} else {
			fmt.Fprintf(out, "[%s] attempt %d: %s\n", transition.State, transition.Attempt, transition.Message)
		}
	case verification.StateIdle:
	default:
		fmt.Fprintf(out, "[%s] %s\n", transition.State, transition.Message)
	}
}

func printFlowResult(out io.Writer, result *FlowResult) {
	switch {
	case result.Certificate != nil:
		fmt.Fprintf(out, "Verified. Life certificate #%d issued for %s.\n", result.Certificate.Id, result.Certificate.Quarter)
	case result.Message != "":
		fmt.Fprintln(out, result.Message)
	}
	fmt.Fprintf(out, "Next: %s\n", result.Route)
}
