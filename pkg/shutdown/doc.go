/*
Package shutdown implements the graceful termination primitive shared by all
rustyrobot services.

One Coordinator exists per process. A signal handler at the top level calls
Shutdown(); every long-running loop in the engine polls ShouldShutdown() at
its iteration boundary and drains before exiting. Named worker slots,
registered through Started(), make it observable which loops are still alive
while the process winds down.
*/
package shutdown
