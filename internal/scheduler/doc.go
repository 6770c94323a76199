// Package scheduler maps weekly (day, hour) slots to due users and keeps OS triggers in step with the schedule.
//
// # Reference Counting
//
// Many users may share a slot but the slot only ever has one [Trigger]. The
// [Coordinator] creates it when the first entry lands in a slot and removes it
// when the last entry leaves. [Coordinator.Reconcile] repairs drift after a
// crash between the data change and the trigger change.
//
// # Triggers
//
//   - [CronTab] : one line per slot in the user's crontab, tagged "# <slot key>"
//   - [SchTasks] : one weekly Windows scheduled task per slot, named by slot key
//   - [InProcess] : robfig/cron entries for the serve daemon
//   - [Memory] : tests
//
// A fired OS trigger runs "autoshorts --cron", which calls [Coordinator.RunDue].
//
// # Ticks
//
// [Coordinator.RunDue] runs the pipeline for every user due in the current
// slot through a bounded errgroup. One user's failure is logged and reported
// in the [TickReport]; it never stops the rest of the tick.
package scheduler
