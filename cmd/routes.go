package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"voyanceBack/internal/models"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	sessionMiddleware := standardMiddleware.Append(app.requireRole())
	adminMiddleware := standardMiddleware.Append(app.requireRole(models.RoleAdmin))
	agentMiddleware := standardMiddleware.Append(app.requireRole(models.RoleAgent))
	clientMiddleware := standardMiddleware.Append(app.requireRole(models.RoleClient))
	participantMiddleware := standardMiddleware.Append(app.requireRole(models.RoleAgent, models.RoleClient))

	mux := pat.New()

	// Auth
	mux.Post("/api/auth/admin/login", standardMiddleware.ThenFunc(app.authHandler.LoginAdmin))
	mux.Post("/api/auth/agent/login", standardMiddleware.ThenFunc(app.authHandler.LoginAgent))
	mux.Post("/api/auth/client/login", standardMiddleware.ThenFunc(app.authHandler.LoginClient))
	mux.Post("/api/auth/client/register", standardMiddleware.ThenFunc(app.authHandler.Register))
	mux.Post("/api/auth/refresh", standardMiddleware.ThenFunc(app.authHandler.Refresh))
	mux.Post("/api/auth/logout", standardMiddleware.Append(app.optionalSession).ThenFunc(app.authHandler.Logout))
	mux.Get("/api/auth/me", sessionMiddleware.ThenFunc(app.authHandler.Me))

	// Admin
	mux.Get("/api/admin/dashboard", adminMiddleware.ThenFunc(app.analyticsHandler.Dashboard))
	mux.Get("/api/admin/analytics", adminMiddleware.ThenFunc(app.analyticsHandler.Range))

	mux.Get("/api/admin/agents", adminMiddleware.ThenFunc(app.agentHandler.List))
	mux.Post("/api/admin/agents", adminMiddleware.ThenFunc(app.agentHandler.Create))
	mux.Get("/api/admin/agents/:id/stats", adminMiddleware.ThenFunc(app.agentHandler.Stats))
	mux.Get("/api/admin/agents/:id", adminMiddleware.ThenFunc(app.agentHandler.Get))
	mux.Put("/api/admin/agents/:id", adminMiddleware.ThenFunc(app.agentHandler.Update))
	mux.Del("/api/admin/agents/:id", adminMiddleware.ThenFunc(app.agentHandler.Delete))

	mux.Get("/api/admin/voyants", adminMiddleware.ThenFunc(app.voyantHandler.List))
	mux.Post("/api/admin/voyants", adminMiddleware.ThenFunc(app.voyantHandler.Create))
	mux.Post("/api/admin/voyants/:id/image", adminMiddleware.ThenFunc(app.voyantHandler.UploadImage))
	mux.Get("/api/admin/voyants/:id", adminMiddleware.ThenFunc(app.voyantHandler.Get))
	mux.Put("/api/admin/voyants/:id", adminMiddleware.ThenFunc(app.voyantHandler.Update))
	mux.Del("/api/admin/voyants/:id", adminMiddleware.ThenFunc(app.voyantHandler.Delete))

	mux.Get("/api/admin/clients", adminMiddleware.ThenFunc(app.clientHandler.List))
	mux.Get("/api/admin/clients/:id/packs", adminMiddleware.ThenFunc(app.clientHandler.ListPacks))
	mux.Post("/api/admin/clients/:id/minutes", adminMiddleware.ThenFunc(app.clientHandler.GrantMinutes))
	mux.Get("/api/admin/clients/:id", adminMiddleware.ThenFunc(app.clientHandler.Get))
	mux.Del("/api/admin/clients/:id", adminMiddleware.ThenFunc(app.clientHandler.Delete))

	mux.Get("/api/admin/users", adminMiddleware.ThenFunc(app.userHandler.List))
	mux.Put("/api/admin/users/:id/role", adminMiddleware.ThenFunc(app.userHandler.UpdateRole))

	mux.Get("/api/admin/reviews/pending", adminMiddleware.ThenFunc(app.reviewHandler.ListPending))
	mux.Get("/api/admin/reviews", adminMiddleware.ThenFunc(app.reviewHandler.ListAll))
	mux.Post("/api/admin/reviews", adminMiddleware.ThenFunc(app.reviewHandler.Create))
	mux.Post("/api/admin/reviews/:id/approve", adminMiddleware.ThenFunc(app.reviewHandler.Approve))
	mux.Del("/api/admin/reviews/:id", adminMiddleware.ThenFunc(app.reviewHandler.Reject))

	mux.Get("/api/admin/payments", adminMiddleware.ThenFunc(app.paymentHandler.List))
	mux.Post("/api/admin/payments/:id/refund", adminMiddleware.ThenFunc(app.paymentHandler.Refund))

	mux.Get("/api/admin/conversations/:id/messages", adminMiddleware.ThenFunc(app.messageHandler.List))
	mux.Get("/api/admin/conversations/:id", adminMiddleware.ThenFunc(app.conversationHandler.Get))

	// Agent
	mux.Get("/api/agent/voyants", agentMiddleware.ThenFunc(app.agentHandler.MyVoyants))
	mux.Get("/api/agent/stats", agentMiddleware.ThenFunc(app.agentHandler.MyStats))
	mux.Post("/api/agent/heartbeat", agentMiddleware.ThenFunc(app.agentHandler.Heartbeat))
	mux.Post("/api/agent/offline", agentMiddleware.ThenFunc(app.agentHandler.Offline))
	mux.Post("/api/agent/device", agentMiddleware.ThenFunc(app.agentHandler.RegisterDevice))
	mux.Get("/api/agent/conversations", agentMiddleware.ThenFunc(app.conversationHandler.Mine))
	mux.Get("/api/agent/conversations/:id/messages", agentMiddleware.ThenFunc(app.messageHandler.List))
	mux.Post("/api/agent/conversations/:id/messages", agentMiddleware.ThenFunc(app.messageHandler.Send))
	mux.Post("/api/agent/conversations/:id/read", agentMiddleware.ThenFunc(app.messageHandler.MarkRead))
	mux.Post("/api/agent/conversations/:id/end", agentMiddleware.ThenFunc(app.conversationHandler.End))
	mux.Post("/api/agent/conversations/:id/cancel", agentMiddleware.ThenFunc(app.conversationHandler.Cancel))
	mux.Get("/api/agent/conversations/:id", agentMiddleware.ThenFunc(app.conversationHandler.Get))

	// Client
	mux.Get("/api/client/profile", clientMiddleware.ThenFunc(app.clientHandler.Profile))
	mux.Get("/api/client/minutes", clientMiddleware.ThenFunc(app.clientHandler.Minutes))
	mux.Get("/api/client/conversations/active", clientMiddleware.ThenFunc(app.conversationHandler.Active))
	mux.Get("/api/client/conversations", clientMiddleware.ThenFunc(app.conversationHandler.Mine))
	mux.Post("/api/client/conversations", clientMiddleware.ThenFunc(app.conversationHandler.Start))
	mux.Post("/api/client/conversations/:id/tick", clientMiddleware.ThenFunc(app.conversationHandler.Tick))
	mux.Post("/api/client/conversations/:id/end", clientMiddleware.ThenFunc(app.conversationHandler.End))
	mux.Post("/api/client/conversations/:id/cancel", clientMiddleware.ThenFunc(app.conversationHandler.Cancel))
	mux.Get("/api/client/conversations/:id/messages", clientMiddleware.ThenFunc(app.messageHandler.List))
	mux.Post("/api/client/conversations/:id/messages", clientMiddleware.ThenFunc(app.messageHandler.Send))
	mux.Post("/api/client/conversations/:id/read", clientMiddleware.ThenFunc(app.messageHandler.MarkRead))
	mux.Get("/api/client/conversations/:id", clientMiddleware.ThenFunc(app.conversationHandler.Get))
	mux.Post("/api/client/reviews", clientMiddleware.ThenFunc(app.reviewHandler.Submit))
	mux.Post("/api/client/purchase", clientMiddleware.ThenFunc(app.paymentHandler.Purchase))
	mux.Post("/api/client/payments/:id/confirm", clientMiddleware.ThenFunc(app.paymentHandler.Confirm))
	mux.Get("/api/client/payments", clientMiddleware.ThenFunc(app.paymentHandler.Mine))

	// Public
	mux.Get("/api/public/reviews", standardMiddleware.ThenFunc(app.reviewHandler.ListPublished))
	mux.Get("/api/public/voyants/:id", standardMiddleware.ThenFunc(app.voyantHandler.Detail))
	mux.Get("/api/public/voyants", standardMiddleware.ThenFunc(app.voyantHandler.ListActive))
	mux.Get("/api/public/agents/online", standardMiddleware.ThenFunc(app.agentHandler.Online))
	mux.Get("/api/public/packs", standardMiddleware.ThenFunc(app.paymentHandler.Offers))
	mux.Post("/api/public/visit", standardMiddleware.ThenFunc(app.analyticsHandler.TrackVisit))

	// Provider callbacks and realtime
	mux.Post("/webhooks/stripe", standardMiddleware.ThenFunc(app.paymentHandler.Webhook))
	mux.Get("/ws", participantMiddleware.ThenFunc(app.wsHandler.Serve))

	return mux
}
