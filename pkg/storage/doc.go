/*
Package storage provides the local event archive used by the dumper service.

Events flowing through the bus are ephemeral once every group has consumed
them; the archive keeps a queryable copy on disk, indexed by variant tag, for
offline inspection.
*/
package storage
