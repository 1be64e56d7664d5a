package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/general/version", s.handleVersion)
		r.Post("/auth/login", s.handleLogin)

		// Gateways post readings with or without a token; everything else
		// under these mounts needs one.
		r.Route("/status", s.statusRoutes)
		r.Route("/erreurs", s.statusRoutes)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)
			r.Get("/general/batiment/{id}/alldata", s.handleBuildingAllData)

			r.Route("/sites", func(r chi.Router) {
				r.Get("/", s.handleListSites)
				r.Post("/", s.handleCreateSite)
				r.Get("/my", s.handleMySites)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSite)
					r.Put("/", s.handleUpdateSite)
					r.Delete("/", s.handleDeleteSite)
					r.Get("/full", s.handleGetSiteFull)
					r.Get("/buildings", s.handleListSiteBuildings)
					r.Get("/users", s.handleListSiteUsers)
					r.Get("/statuses/export", s.handleExportSiteStatuses)
					r.Get("/map", s.handleGetSiteMap)
					r.Post("/map", s.handleUploadSiteMap)
					r.Put("/map", s.handleUpdateSiteMap)
					r.Put("/floors/{floorID}/map", s.handleUpdateSiteFloorMap)
				})
			})

			r.Route("/buildings", func(r chi.Router) {
				r.Get("/", s.handleListBuildings)
				r.Post("/", s.handleCreateBuilding)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetBuilding)
					r.Put("/", s.handleUpdateBuilding)
					r.Delete("/", s.handleDeleteBuilding)
					r.Get("/floors", s.handleListBuildingFloors)
				})
			})

			r.Route("/floors", func(r chi.Router) {
				r.Get("/", s.handleListFloors)
				r.Post("/", s.handleCreateFloor)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetFloor)
					r.Put("/", s.handleUpdateFloor)
					r.Delete("/", s.handleDeleteFloor)
					r.Get("/devices", s.handleListFloorDevices)
					r.Get("/map", s.handleGetFloorMap)
					r.Post("/map", s.handleUploadFloorMap)
				})
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Get("/unassigned", s.handleListUnassignedDevices)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Put("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Put("/ignore", s.handleSetDeviceIgnored)
					r.Get("/statuses", s.handleListDeviceStatuses)
				})
			})

			r.Route("/maps", func(r chi.Router) {
				r.Get("/", s.handleListMaps)
				r.Get("/files/{name}", s.handleServeMapFile)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetMap)
					r.Put("/", s.handleUpdateMap)
					r.Put("/assign", s.handleAssignMap)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.With(s.requireRole(adminRoles...)).Get("/", s.handleListUsers)
				r.With(s.requireRole(adminRoles...)).Post("/", s.handleCreateUser)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Get("/hierarchy", s.handleUserHierarchy)
					r.Get("/devices", s.handleUserDevices)
					r.Get("/permissions", s.handleUserPermissions)
					r.Group(func(r chi.Router) {
						r.Use(s.requireRole(adminRoles...))
						r.Put("/", s.handleUpdateUser)
						r.Delete("/", s.handleDeleteUser)
						r.Post("/global-roles", s.handleAssignGlobalRole)
						r.Post("/sites", s.handleAddUserSite)
						r.Delete("/sites/{siteID}", s.handleRemoveUserSite)
					})
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(adminRoles...))

				r.Route("/roles", func(r chi.Router) {
					r.Get("/", s.handleListRoles)
					r.Post("/", s.handleCreateRole)
					r.Get("/{id}", s.handleGetRole)
					r.Delete("/{id}", s.handleDeleteRole)
				})

				r.Route("/user-site-roles", func(r chi.Router) {
					r.Get("/", s.handleListAssociations)
					r.Post("/", s.handleCreateAssociation)
					r.Get("/{id}", s.handleGetAssociation)
					r.Put("/{id}", s.handleUpdateAssociation)
					r.Delete("/{id}", s.handleDeleteAssociation)
				})

				r.Get("/audit-logs", s.handleListAuditLogs)
			})

			r.Route("/configs", func(r chi.Router) {
				r.Get("/", s.handleListConfigs)
				r.Get("/key/{key}", s.handleGetConfigByKey)
				r.Get("/{id}", s.handleGetConfig)
				r.Group(func(r chi.Router) {
					r.Use(s.requireRole(adminRoles...))
					r.Post("/", s.handleCreateConfig)
					r.Put("/{id}", s.handleUpdateConfig)
					r.Delete("/{id}", s.handleDeleteConfig)
				})
			})
		})
	})

	return r
}

// statusRoutes is mounted at /status and at the legacy /erreurs.
func (s *Server) statusRoutes(r chi.Router) {
	r.With(s.optionalAuthMiddleware).Post("/", s.handleIngestStatus)
	r.With(s.optionalAuthMiddleware).Put("/{id}", s.handleAcknowledge)
	r.With(s.optionalAuthMiddleware).Put("/{id}/status", s.handleAcknowledge)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/", s.handleListStatuses)
		r.Get("/latest", s.handleLatestStatus)
		r.Get("/acknowledged", s.handleListAcknowledged)
		r.Get("/after/{timestamp}", s.handleListStatusesAfter)
		r.Get("/baes/{id}", s.handleListDeviceStatuses)
		r.Put("/baes/{id}/type/{code}", s.handleUpdateMeasurements)
		r.Get("/etage/{id}", s.handleListFloorStatuses)
		r.Get("/user/{id}", s.handleListUserStatuses)
		r.Get("/site/{id}/latest", s.handleLatestSiteStatuses)
		r.Get("/site/{id}/summary", s.handleSiteSummary)
		r.Get("/{id}", s.handleGetStatus)
		r.Delete("/{id}", s.handleDeleteStatus)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": s.version})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}
