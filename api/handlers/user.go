package handlers

import (
	"net/http"

	"github.com/directoryhub/directory-services/api/services"
)

func RegisterUser(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.RegisterUserService(svc, w, r)
	}
}

func GetUsers(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.GetUsersService(svc, w, r)
	}
}

func GetUser(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.GetUserService(svc, w, r)
	}
}

func UpdateUser(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.UpdateUserService(svc, w, r)
	}
}

func DeleteUser(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.DeleteUserService(svc, w, r)
	}
}
