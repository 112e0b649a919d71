/*
Package queue provides the three queue shapes a work-stealing scheduler needs.

Injector: unbounded multi-producer multi-consumer queue receiving new work
before any worker has claimed it.

Worker: a FIFO owned by exactly one goroutine. Only the owner calls Push and
Pop; anyone holding its Stealer may take a batch from the tail.

Stealer: a steal handle for a Worker, safe to share between goroutines.

Steals never block. A steal that finds the source locked reports Retry so the
caller can decide between spinning on the same source and moving on. No
operation holds two queue locks at once, which keeps thieves that steal from
each other from deadlocking.
*/
package queue
