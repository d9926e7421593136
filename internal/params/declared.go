package params

// Parameter names shared across handler families.
const (
	DiscordWebhookURL = "DISCORD_WEBHOOK_URL"
	SlackWebhookURL   = "SLACK_WEBHOOK_URL"

	JiraURI       = "JIRA_URI"
	ProjectKey    = "PROJECT_KEY"
	IssueTypeID   = "ISSUE_TYPE_ID"
	IssueLabel    = "ISSUE_LABEL"
	APITokenOwner = "API_TOKEN_OWNER"
	APIToken      = "API_TOKEN"

	BackupCount     = "BACKUP_COUNT"
	HourlyBatchSize = "HOURLY_BATCH_SIZE"
	BackupBucket    = "BACKUP_BUCKET"
	NasaAPIKey      = "NASA_API_KEY"
	BackupQueueURL  = "BACKUP_QUEUE_URL"

	DocumentTable   = "DOCUMENT_TABLE"
	RealtimeDBAddr  = "REALTIME_DB_ADDR"
	UserPoolID      = "USER_POOL_ID"
	EventBusName    = "EVENT_BUS_NAME"
	ConfigBucket    = "REMOTE_CONFIG_BUCKET"
	AnthropicKey    = "ANTHROPIC_API_KEY"
	CallableSecret  = "CALLABLE_JWT_SECRET"
	BannedIPRanges  = "BANNED_IP_RANGES"
	AllowedDomain   = "ALLOWED_EMAIL_DOMAIN"
	GenerateBaseURL = "GENERATE_BASE_URL"
	MetricsLogGroup = "METRICS_LOG_GROUP"
	MetricNamespace = "METRIC_NAMESPACE"
	MetricRetention = "METRICS_RETENTION_DAYS"

	PhotoModerationURL    = "PHOTO_MODERATION_URL"
	PhotoScoreThreshold   = "PHOTO_SCORE_THRESHOLD_PERCENT"
	PlaceholderPhotoURL   = "PLACEHOLDER_PHOTO_URL"
	VerificationRelayURL  = "VERIFICATION_RELAY_URL"
	VerificationLinkBase  = "VERIFICATION_LINK_BASE"
	VerificationSecret    = "VERIFICATION_LINK_SECRET"
	OnboardingQueueURL    = "ONBOARDING_QUEUE_URL"
	OnboardingCalendarURL = "ONBOARDING_CALENDAR_URL"
)

// Default is every parameter the functions binary declares.
var Default = Declarations{
	Strings: []StringParam{
		{Name: JiraURI, Description: "URI of your Jira instance (e.g. 'https://mysite.atlassian.net')"},
		{Name: ProjectKey, Description: "Project key of your Jira instance (e.g. 'XY')"},
		{Name: IssueLabel, Default: "in-app", Description: "Label for the Jira issues being created"},
		{Name: APITokenOwner, Description: "Owner of the Jira API token"},
		{Name: BackupBucket, Description: "Bucket APOD backups are written to"},
		{Name: NasaAPIKey, Description: "NASA open API key"},
		{Name: BackupQueueURL, Description: "SQS queue the backup tasks are enqueued on"},
		{Name: DocumentTable, Description: "DynamoDB table backing the document store"},
		{Name: RealtimeDBAddr, Description: "Redis address backing the realtime database; realtime triggers are disabled when empty"},
		{Name: UserPoolID, Description: "Cognito user pool id"},
		{Name: EventBusName, Default: "default", Description: "EventBridge bus custom events are published to"},
		{Name: ConfigBucket, Description: "Bucket holding versioned remote config templates"},
		{Name: BannedIPRanges, Description: "Comma separated addresses and CIDR ranges refused at sign-in"},
		{Name: AllowedDomain, Default: "@acme.com", Description: "Email domain new accounts must belong to"},
		{Name: GenerateBaseURL, Description: "Override for the generation API base URL"},
		{Name: MetricsLogGroup, Description: "CloudWatch Logs group invocation metrics are written to; metrics are off when empty"},
		{Name: MetricNamespace, Default: "Hermes", Description: "CloudWatch namespace of invocation metrics"},
		{Name: PhotoModerationURL, Description: "Endpoint scoring profile photos; photo sanitizing is off when empty"},
		{Name: PlaceholderPhotoURL, Description: "Photo URL given to new users whose photo scored too high"},
		{Name: VerificationRelayURL, Description: "Mail relay verification links are posted to; verification mail is off when empty"},
		{Name: VerificationLinkBase, Description: "Page that redeems email verification links"},
		{Name: OnboardingQueueURL, Description: "SQS queue onboarding tasks are enqueued on; onboarding is off when empty"},
		{Name: OnboardingCalendarURL, Default: "https://www.googleapis.com/calendar/v3/calendars/primary/events", Description: "Calendar events endpoint onboarding sessions are created on"},
	},
	Ints: []IntParam{
		{Name: IssueTypeID, Default: 10001, Description: "Issue type ID for the Jira issues being created"},
		{Name: BackupCount, Default: 100, Description: "Number of APOD backup tasks to enqueue"},
		{Name: HourlyBatchSize, Default: 600, Description: "Backup tasks dispatched per hour"},
		{Name: MetricRetention, Default: 14, Description: "Retention in days of a metrics log group created at cold start"},
		{Name: PhotoScoreThreshold, Default: 70, Description: "Photo score, in percent, above which a new user's photo is replaced"},
	},
	Secrets: []SecretParam{
		{Name: DiscordWebhookURL, Description: "Discord webhook alerts are posted to"},
		{Name: SlackWebhookURL, Description: "Slack webhook test results are posted to"},
		{Name: APIToken, Description: "Jira API token"},
		{Name: AnthropicKey, Description: "API key for generation requests"},
		{Name: CallableSecret, Description: "HMAC key verifying callable bearer tokens"},
		{Name: VerificationSecret, Description: "HMAC key signing email verification links"},
	},
}
