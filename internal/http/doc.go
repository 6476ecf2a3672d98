// Package http provides HTTP handlers and middleware for the reservation API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"student_number","password"}.
//     Response: {"token","expires_at","user"} with the token also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session token extracted from
//     the Authorization header or session cookie. Returns 204 No Content and
//     clears the cookie.
//   - POST /users: registers a new account exchanging the `registerRequest` and
//     `userDTO` payloads defined in user_handler.go. GET /users/me returns the
//     authenticated account.
//   - GET /classrooms, POST /classrooms, GET/PUT/DELETE /classrooms/{id}:
//     classroom catalog endpoints exchanging the `classroomDTO` payload defined
//     in classroom_handler.go. Listing supports the min_capacity, has_projector,
//     has_whiteboard and name query filters and is available to any
//     authenticated principal while mutations require admin privileges.
//     GET /classrooms/{id}/timeline returns the room's active reservations.
//   - GET /reservations, POST /reservations, GET/DELETE /reservations/{id}:
//     reservation endpoints exchanging the `reservationDTO` payload defined in
//     reservation_handler.go. Cancelling reports any waitlist entries promoted
//     into the freed slot.
//   - GET /waitlist, POST /waitlist, DELETE /waitlist/{id}: waitlist endpoints
//     exchanging the `waitlistDTO` payload defined in waitlist_handler.go.
//   - GET /notifications, POST /notifications/{id}/read: inbox endpoints
//     exchanging the `notificationDTO` payload defined in notification_handler.go.
//   - GET /statistics/top-classrooms: admin-only ranking of classrooms by
//     active reservation count, defined in statistics_handler.go.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
