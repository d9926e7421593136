package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/cognitoclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/cwlclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/dynamoclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/eventbridgeclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/s3client"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/secretsclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/snsclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/sqsclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/blob"
	"github.com/outofoffice3/aws-samples/hermes/internal/bus"
	"github.com/outofoffice3/aws-samples/hermes/internal/callable"
	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/generate"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/accountcleanup"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/alerts"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/authblocking"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/backup"
	callablehandler "github.com/outofoffice3/aws-samples/hermes/internal/handlers/callable"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/customevents"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/feedback"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/followers"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/monitoring"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/onboarding"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/pubsub"
	remoteconfighandler "github.com/outofoffice3/aws-samples/hermes/internal/handlers/remoteconfig"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/testlab"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/thumbnails"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/timeserver"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/uppercase"
	"github.com/outofoffice3/aws-samples/hermes/internal/host"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/metrics"
	"github.com/outofoffice3/aws-samples/hermes/internal/params"
	"github.com/outofoffice3/aws-samples/hermes/internal/push"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	"github.com/outofoffice3/aws-samples/hermes/internal/remoteconfig"
	"github.com/outofoffice3/aws-samples/hermes/internal/rtdb"
	"github.com/outofoffice3/aws-samples/hermes/internal/taskqueue"
	"github.com/outofoffice3/aws-samples/hermes/internal/userdir"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
	"github.com/redis/go-redis/v9"
)

const (

	// environment variables
	logLevelEnv      = "LOG_LEVEL"
	functionKindEnv  = "FUNCTION_KIND"
	secretsPrefixEnv = "SECRETS_PREFIX"
	paramsFileEnv    = "PARAMS_FILE"
	regionEnv        = "AWS_REGION"
	logStreamEnv     = "AWS_LAMBDA_LOG_STREAM_NAME"

	// known service variables
	httpTimeout   = 30 * time.Second
	redisPrefix   = "rtdb:"
	defaultRegion = "us-east-1"

	// Init errors
	ErrMsgLoadAWSConfig    = "error loading AWS config"
	ErrMsgCreateLoader     = "error creating params loader"
	ErrMsgLoadParams       = "error loading params"
	ErrMsgParseBannedIPs   = "error parsing banned ip ranges"
	ErrMsgCreateClient     = "error creating client"
	ErrMsgCreateBackend    = "error creating backend"
	ErrMsgCreateHandler    = "error creating handler"
	ErrMsgRegisterHandlers = "error registering handlers"
	ErrMsgCreateHost       = "error creating host"
)

func main() {
	ctx := context.Background()
	log := initLogger()

	awsCfg := loadAWSConfig(LoadAWSConfigInput{
		Ctx:    ctx,
		Logger: log,
	})

	vals := loadParams(LoadParamsInput{
		Ctx:    ctx,
		AwsCfg: awsCfg,
		Logger: log,
	})
	log.Info("loaded params")

	b := buildBackends(BuildBackendsInput{
		AwsCfg: awsCfg,
		Values: vals,
		Logger: log,
	})

	reg := registry.New(log)
	families := buildFamilies(BuildFamiliesInput{
		Backends: b,
		Values:   vals,
		Logger:   log,
	})
	if err := handlers.RegisterAll(reg, families...); err != nil {
		fatal(FatalInput{
			Logger: log,
			Msg:    ErrMsgRegisterHandlers,
			Err:    err,
		})
	}
	reg.Seal()
	log.Info("registered %d kinds", len(reg.Kinds()))

	h, err := host.New(host.Config{
		Registry: reg,
		Kind:     event.Kind(os.Getenv(functionKindEnv)),
		Verifier: b.Verifier,
		SQS:      b.SQS,
		Metrics:  b.Metrics,
		Logger:   log,
	})
	if err != nil {
		fatal(FatalInput{
			Logger: log,
			Msg:    ErrMsgCreateHost,
			Err:    err,
		})
	}
	lambda.Start(func(ctx context.Context, raw json.RawMessage) (any, error) {
		return h.Invoke(ctx, raw)
	})
}

// initLogger sets up the package logger.
func initLogger() logger.Logger {
	logger.Init(logger.ParseLevel(os.Getenv(logLevelEnv)), os.Stdout)
	return logger.Get()
}

type LoadAWSConfigInput struct {
	Ctx    context.Context
	Logger logger.Logger
}

// loadAWSConfig initializes AWS SDK config.
func loadAWSConfig(input LoadAWSConfigInput) aws.Config {
	cfg, err := config.LoadDefaultConfig(input.Ctx)
	if err != nil {
		fatal(FatalInput{
			Logger: input.Logger,
			Msg:    ErrMsgLoadAWSConfig,
			Err:    err,
		})
	}
	return cfg
}

func region(cfg aws.Config) string {
	if cfg.Region != "" {
		return cfg.Region
	}
	if r := os.Getenv(regionEnv); r != "" {
		return r
	}
	return defaultRegion
}

type LoadParamsInput struct {
	Ctx    context.Context
	AwsCfg aws.Config
	Logger logger.Logger
}

// loadParams resolves every declared parameter once per cold start.
func loadParams(input LoadParamsInput) *params.Values {
	log := input.Logger
	secrets, err := secretsclient.NewSecretsClient(input.AwsCfg, region(input.AwsCfg))
	if err != nil {
		fatal(FatalInput{Logger: log, Msg: ErrMsgCreateClient, Err: err})
	}
	loader, err := params.NewLoader(&params.LoaderConfig{
		Secrets:      secrets,
		SecretPrefix: os.Getenv(secretsPrefixEnv),
		ConfigFile:   os.Getenv(paramsFileEnv),
		Logger:       log,
	})
	if err != nil {
		fatal(FatalInput{Logger: log, Msg: ErrMsgCreateLoader, Err: err})
	}
	vals, err := loader.Load(input.Ctx, params.Default)
	if err != nil {
		fatal(FatalInput{Logger: log, Msg: ErrMsgLoadParams, Err: err})
	}
	return vals
}

// Backends holds the storage and messaging layers handlers are built on.
// Optional backends are nil when their parameter is empty.
type Backends struct {
	Poster    *webhook.Poster
	Blobs     blob.Store
	Publisher bus.Publisher
	Sender    push.Sender
	Documents docstore.Documents
	Tree      rtdb.Tree
	Directory userdir.Directory
	Queue     taskqueue.Enqueuer
	// Onboarding is the queue onboarding sessions are booked from.
	Onboarding taskqueue.Enqueuer
	Templates  remoteconfig.Templates
	Generator  generate.Generator
	Verifier   *callable.Verifier
	Metrics    metrics.Emitter
	SQS        map[event.Kind]host.SQSFunc
}

type BuildBackendsInput struct {
	AwsCfg aws.Config
	Values *params.Values
	Logger logger.Logger
}

// buildBackends creates the AWS clients and the backends over them.
func buildBackends(input BuildBackendsInput) *Backends {
	log := input.Logger
	cfg := input.AwsCfg
	vals := input.Values
	rgn := region(cfg)
	check := func(err error, msg string) {
		if err != nil {
			fatal(FatalInput{Logger: log, Msg: msg, Err: err})
		}
	}

	b := &Backends{
		Metrics: metrics.Noop{},
		Poster:  webhook.NewPoster(&http.Client{Timeout: httpTimeout}),
		SQS:     map[event.Kind]host.SQSFunc{},
	}

	s3c, err := s3client.NewS3Client(cfg, rgn)
	check(err, ErrMsgCreateClient)
	blobs, err := blob.New(s3c)
	check(err, ErrMsgCreateBackend)
	b.Blobs = blobs

	ebc, err := eventbridgeclient.NewEventBridgeClient(cfg, rgn)
	check(err, ErrMsgCreateClient)
	pub, err := bus.New(ebc, vals.String(params.EventBusName))
	check(err, ErrMsgCreateBackend)
	b.Publisher = pub

	snsc, err := snsclient.NewSnsClient(cfg, rgn)
	check(err, ErrMsgCreateClient)
	sender, err := push.New(snsc)
	check(err, ErrMsgCreateBackend)
	b.Sender = sender

	if table := vals.String(params.DocumentTable); table != "" {
		ddb, err := dynamoclient.NewDynamoClient(cfg, rgn)
		check(err, ErrMsgCreateClient)
		docs, err := docstore.New(docstore.Config{Client: ddb, Table: table})
		check(err, ErrMsgCreateBackend)
		b.Documents = docs
	} else {
		log.Warn("%s not set; document triggers are disabled", params.DocumentTable)
	}

	if addr := vals.String(params.RealtimeDBAddr); addr != "" {
		tree, err := rtdb.New(redis.NewClient(&redis.Options{Addr: addr}), redisPrefix)
		check(err, ErrMsgCreateBackend)
		b.Tree = tree
	} else {
		log.Warn("%s not set; realtime database triggers are disabled", params.RealtimeDBAddr)
	}

	if pool := vals.String(params.UserPoolID); pool != "" {
		cog, err := cognitoclient.NewCognitoClient(cfg, rgn)
		check(err, ErrMsgCreateClient)
		dir, err := userdir.New(userdir.Config{Client: cog, UserPoolID: pool})
		check(err, ErrMsgCreateBackend)
		b.Directory = dir
	} else {
		log.Warn("%s not set; user directory triggers are disabled", params.UserPoolID)
	}

	var sqsc sqsclient.SqsClient
	queue := func(url string) taskqueue.Enqueuer {
		if sqsc == nil {
			c, err := sqsclient.NewSqsClient(cfg, rgn)
			check(err, ErrMsgCreateClient)
			sqsc = c
		}
		q, err := taskqueue.New(taskqueue.Config{Client: sqsc, QueueURL: url})
		check(err, ErrMsgCreateBackend)
		return q
	}
	if url := vals.String(params.BackupQueueURL); url != "" {
		b.Queue = queue(url)
	}
	if url := vals.String(params.OnboardingQueueURL); url != "" {
		b.Onboarding = queue(url)
	}

	if bucket := vals.String(params.ConfigBucket); bucket != "" {
		store, err := remoteconfig.New(blobs, bucket)
		check(err, ErrMsgCreateBackend)
		b.Templates = store
	}

	if key := vals.String(params.AnthropicKey); key != "" {
		var opts []option.RequestOption
		if base := vals.String(params.GenerateBaseURL); base != "" {
			opts = append(opts, option.WithBaseURL(base))
		}
		gen, err := generate.NewAnthropic(key, opts...)
		check(err, ErrMsgCreateBackend)
		b.Generator = gen
	}

	if secret := vals.String(params.CallableSecret); secret != "" {
		v, err := callable.NewVerifier(secret)
		check(err, ErrMsgCreateBackend)
		b.Verifier = v
	}

	if group := vals.String(params.MetricsLogGroup); group != "" {
		stream := os.Getenv(logStreamEnv)
		if stream == "" {
			stream = uuid.NewString()
		}
		cwl, err := cwlclient.NewCloudWatchLogsClient(cfg, rgn)
		check(err, ErrMsgCreateClient)
		m, err := metrics.NewCloudWatchLogs(metrics.CloudWatchLogsConfig{
			Client:        cwl,
			Namespace:     vals.String(params.MetricNamespace),
			LogGroup:      group,
			LogStream:     stream,
			RetentionDays: int32(vals.Int(params.MetricRetention)),
			Logger:        log,
		})
		check(err, ErrMsgCreateBackend)
		if err := m.Ensure(context.Background()); err != nil {
			log.Warn("metrics log group unavailable, metrics are disabled: %v", err)
		} else {
			b.Metrics = m
		}
	}
	return b
}

type BuildFamiliesInput struct {
	Backends *Backends
	Values   *params.Values
	Logger   logger.Logger
}

// buildFamilies creates every handler family whose backends are available.
func buildFamilies(input BuildFamiliesInput) []handlers.Registrar {
	log := input.Logger
	b := input.Backends
	vals := input.Values
	var out []handlers.Registrar
	add := func(r handlers.Registrar, err error) {
		if err != nil {
			fatal(FatalInput{Logger: log, Msg: ErrMsgCreateHandler, Err: err})
		}
		out = append(out, r)
	}

	add(alerts.NewAlertsHandler(alerts.AlertsHandlerConfig{
		Poster:     b.Poster,
		WebhookURL: vals.String(params.DiscordWebhookURL),
		Logger:     log,
	}))
	add(feedback.NewFeedbackHandler(feedback.FeedbackHandlerConfig{
		Poster: b.Poster,
		Jira: feedback.JiraConfig{
			URI:         vals.String(params.JiraURI),
			ProjectKey:  vals.String(params.ProjectKey),
			IssueTypeID: vals.Int(params.IssueTypeID),
			Label:       vals.String(params.IssueLabel),
			TokenOwner:  vals.String(params.APITokenOwner),
			Token:       vals.String(params.APIToken),
		},
		Logger: log,
	}))
	add(testlab.NewTestLabHandler(testlab.TestLabHandlerConfig{
		Poster:     b.Poster,
		WebhookURL: vals.String(params.SlackWebhookURL),
		Logger:     log,
	}))
	add(pubsub.NewPubSubHandler(pubsub.PubSubHandlerConfig{Logger: log}))
	add(timeserver.NewTimeHandler(timeserver.TimeHandlerConfig{Logger: log}))
	add(thumbnails.NewThumbnailHandler(thumbnails.ThumbnailHandlerConfig{
		Blobs:     b.Blobs,
		Publisher: b.Publisher,
		Logger:    log,
	}))

	bh, err := backup.NewBackupHandler(backup.BackupHandlerConfig{
		Poster:          b.Poster,
		Blobs:           b.Blobs,
		Queue:           b.Queue,
		APIKey:          vals.String(params.NasaAPIKey),
		Bucket:          vals.String(params.BackupBucket),
		Count:           vals.Int(params.BackupCount),
		HourlyBatchSize: vals.Int(params.HourlyBatchSize),
		Logger:          log,
	})
	add(bh, err)
	b.SQS[event.BackupApodTask] = bh.HandleSQS

	if b.Documents != nil {
		banned, err := authblocking.ParseBannedIPs(vals.String(params.BannedIPRanges))
		if err != nil {
			fatal(FatalInput{Logger: log, Msg: ErrMsgParseBannedIPs, Err: err})
		}
		add(authblocking.NewAuthBlockingHandler(authblocking.AuthBlockingHandlerConfig{
			Documents:      b.Documents,
			Directory:      b.Directory,
			AllowedDomain:  vals.String(params.AllowedDomain),
			BannedIPs:      banned,
			Scorer:         photoScorer(b, vals),
			PhotoThreshold: float64(vals.Int(params.PhotoScoreThreshold)) / 100,
			PlaceholderURL: vals.String(params.PlaceholderPhotoURL),
			Verifications:  verificationSender(b, vals, log),
			Logger:         log,
		}))
		add(monitoring.NewMonitoringHandler(monitoring.MonitoringHandlerConfig{
			Documents: b.Documents,
			Logger:    log,
		}))
		if b.Directory != nil && b.Onboarding != nil {
			oh, err := onboarding.NewOnboardingHandler(onboarding.OnboardingHandlerConfig{
				Documents:   b.Documents,
				Directory:   b.Directory,
				Queue:       b.Onboarding,
				Poster:      b.Poster,
				CalendarURL: vals.String(params.OnboardingCalendarURL),
				Logger:      log,
			})
			add(oh, err)
			b.SQS[event.ScheduleOnboardingTask] = oh.HandleSQS
		}
		add(uppercase.NewUppercaseHandler(uppercase.UppercaseHandlerConfig{
			Documents: b.Documents,
			Tree:      b.Tree,
			Logger:    log,
		}))
		add(customevents.NewCustomEventsHandler(customevents.CustomEventsHandlerConfig{
			Documents: b.Documents,
			Logger:    log,
		}))
	}
	if b.Directory != nil {
		add(accountcleanup.NewCleanupHandler(accountcleanup.CleanupHandlerConfig{
			Directory: b.Directory,
			Logger:    log,
		}))
	}
	add(callablehandler.NewCallableHandler(callablehandler.CallableHandlerConfig{
		Tree:   b.Tree,
		Logger: log,
	}))
	if b.Tree != nil && b.Directory != nil {
		add(followers.NewFollowerHandler(followers.FollowerHandlerConfig{
			Tree:      b.Tree,
			Directory: b.Directory,
			Sender:    b.Sender,
			Logger:    log,
		}))
	}
	if b.Templates != nil {
		add(remoteconfighandler.NewRemoteConfigHandler(remoteconfighandler.RemoteConfigHandlerConfig{
			Templates: b.Templates,
			Generator: b.Generator,
			Logger:    log,
		}))
	}
	return out
}

// photoScorer returns the moderation endpoint client, or nil when none is set.
func photoScorer(b *Backends, vals *params.Values) authblocking.PhotoScorer {
	url := vals.String(params.PhotoModerationURL)
	if url == "" {
		return nil
	}
	return &authblocking.ModerationService{Poster: b.Poster, URL: url}
}

// verificationSender returns the verification mailer, or nil when the relay
// or the signing secret is missing.
func verificationSender(b *Backends, vals *params.Values, log logger.Logger) authblocking.VerificationSender {
	relay := vals.String(params.VerificationRelayURL)
	secret := vals.String(params.VerificationSecret)
	if relay == "" || secret == "" {
		return nil
	}
	m, err := authblocking.NewVerificationMailer(authblocking.VerificationMailerConfig{
		Poster:   b.Poster,
		RelayURL: relay,
		LinkBase: vals.String(params.VerificationLinkBase),
		Secret:   secret,
	})
	if err != nil {
		fatal(FatalInput{Logger: log, Msg: ErrMsgCreateBackend, Err: err})
	}
	return m
}

type FatalInput struct {
	Logger logger.Logger
	Msg    string
	Err    error
}

// fatal logs and exits
func fatal(input FatalInput) {
	log := input.Logger
	log.Error("%s: %v", input.Msg, input.Err)
	os.Exit(1)
}
