package event

// Trigger tags. A family with several functions on the same source carries
// the function name as the last segment.
const (
	CrashlyticsNewFatalIssue Kind = "crashlytics.newFatalIssue"
	CrashlyticsRegression    Kind = "crashlytics.regression"
	NewTesterIosDevice       Kind = "appDistribution.newTesterIosDevice"
	InAppFeedback            Kind = "appDistribution.inAppFeedback"
	PerformanceThreshold     Kind = "performance.threshold"

	BeforeCreateValidateDomain   Kind = "auth.beforeCreate.validateNewUser"
	BeforeCreateDefaultName      Kind = "auth.beforeCreate.setDefaultName"
	BeforeCreateRequireVerified  Kind = "auth.beforeCreate.requireVerified"
	BeforeCreateMarkVerified     Kind = "auth.beforeCreate.markVerified"
	BeforeCreateEmployeeID       Kind = "auth.beforeCreate.setEmployeeId"
	BeforeSignInRequireVerified  Kind = "auth.beforeSignIn.requireVerified"
	BeforeSignInCopyClaims       Kind = "auth.beforeSignIn.copyClaimsToSession"
	BeforeSignInLogIP            Kind = "auth.beforeSignIn.logIp"
	BeforeSignInIPBan            Kind = "auth.beforeSignIn.ipBan"
	BeforeSignInCheckBannedEmail Kind = "auth.beforeSignIn.checkForBan"
	BeforeCreateSendVerification Kind = "auth.beforeCreate.sendVerification"
	BeforeCreateSanitizePhoto    Kind = "auth.beforeCreate.sanitizeProfilePhoto"
	BeforeCreateSaveGoogleToken  Kind = "auth.beforeCreate.saveGoogleToken"

	ScheduleAccountCleanup Kind = "scheduler.accountCleanup"

	FollowerWritten        Kind = "database.written.followers"
	MessageOriginalAdded   Kind = "database.created.messageOriginal"
	MessageOriginalWritten Kind = "database.written.messageOriginal"
	MessageDocCreated      Kind = "firestore.created.messages"
	MessageDocWritten      Kind = "firestore.written.messages"
	CommentUpdatedWithAuth Kind = "firestore.updatedWithAuth.comments"

	ObjectFinalized Kind = "storage.objectFinalized"

	TestMatrixCompleted Kind = "testLab.testMatrixCompleted"

	BackupApodTask         Kind = "tasks.backupApod"
	ScheduleOnboardingTask Kind = "tasks.scheduleOnboarding"
	EnqueueBackupTasks     Kind = "https.enqueueBackupTasks"
	AddMessageRequest      Kind = "https.addMessage"
	DateRequest            Kind = "https.date"
	HelloWorldRequest      Kind = "https.helloWorld"
	QuoteRequest           Kind = "https.getInspirationalQuote"

	CallAddNumbers Kind = "call.addNumbers"
	CallAddMessage Kind = "call.addMessage"

	PubSubHello           Kind = "pubsub.hello"
	PubSubHelloJSON       Kind = "pubsub.helloJson"
	PubSubHelloAttributes Kind = "pubsub.helloAttributes"

	ImageResized Kind = "custom.imageResized"

	RemoteConfigUpdated Kind = "remoteConfig.updated"
	GenerateWithConfig  Kind = "https.generateWithConfig"
)
