// Package cli implements cachectl, an operator tool for inspecting and
// purging the transfer task cache and the response cache on a device.
//
// Commands
//
//	show <userId> <associateId>                          print cached task state
//	show-task <bgSessionId> <taskId>                     print cached task state by task identity
//	tasks <userId>                                       list tracked tasks of a user
//	delete <userId> <associateId>                        forget one task
//	record <userId> <associateId> <bgSessionId> <taskId> write an index record
//	resp-get <userId> <key>                              print a cached response
//	logout <userId>                                      purge everything of a user
//
// With -encrypt the passphrase is read from the terminal without echo and
// stretched with Argon2id; values must have been written with the same
// passphrase and salt to be readable.
package cli
