// Package tasks defines the task model shared by the display, the sync
// coordinator, and the task service backends.
//
// A list is delivered as a Snapshot:
//
//	{
//	  "id": "MTQxMjc5MTA0NjI5MDMxNTA0NDQ6MDow",
//	  "items": [
//	    {
//	      "id": "a1",
//	      "title": "Water the plants",
//	      "notes": "Balcony first\nthen the kitchen",
//	      "due": "2024-05-01T00:00:00Z",
//	      "status": "pending",
//	      "parent": "",
//	      "updated": "2024-04-30T09:12:44Z"
//	    }
//	  ]
//	}
//
// The position of a task inside "items" is its native order. Snapshots are
// treated as immutable values: every poll or mutation produces a new one via
// Clone, never an in-place edit of a delivered snapshot.
//
// # Task Status Values
//
//   - "pending": not done yet (the Google Tasks API calls this "needsAction")
//   - "completed": done; Updated records when it was completed
//
// # Errors
//
// Failures are classified by Kind so each boundary can decide between a
// silent retry and a visible rollback:
//
//   - KindConfiguration: no list id configured; the widget stays idle
//   - KindCapability: the backend service could not be built
//   - KindTransientFetch: a poll failed; the next tick retries
//   - KindMutation: a status update failed; that task is rolled back
package tasks
